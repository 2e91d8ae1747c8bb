// Package numwords spells integers out as Brazilian Portuguese words.
//
// Cardinals cover zero up to MaxCardinal and ordinals cover one up to
// MaxOrdinal. Anything outside those ranges is reported with ErrOutOfRange
// so callers can keep the digits instead of speaking something wrong.
package numwords

import (
	"errors"
	"fmt"
	"strings"
)

// Supported ranges.
const (
	MaxCardinal = 999_999_999
	MaxOrdinal  = 1999
)

const (
	numberBaseTen      = 10
	numberBaseHundred  = 100
	numberBaseThousand = 1000
	numberBaseMillion  = 1_000_000
	numberTwenty       = 20
)

const (
	wordZero       = "zero"
	wordOne        = "um"
	wordHundred    = "cem"
	wordThousand   = "mil"
	wordMillion    = "milhão"
	wordMillions   = "milhões"
	wordThousandth = "milésimo"
	connector      = " e "
	separator      = " "
)

const errFmtOutOfRange = "%w: %d is outside %d..%d"

// ErrOutOfRange is returned when a number cannot be spelled out.
var ErrOutOfRange = errors.New("number out of supported range")

// Speller converts integers to pt-BR words. It holds only read-only word
// tables and is safe for concurrent use.
type Speller struct {
	units           []string
	teens           []string
	tens            []string
	hundreds        []string
	ordinalUnits    []string
	ordinalTens     []string
	ordinalHundreds []string
}

// New returns a Speller with the pt-BR word tables.
func New() *Speller {
	return &Speller{
		units: []string{
			"", "um", "dois", "três", "quatro", "cinco", "seis", "sete", "oito", "nove",
		},
		teens: []string{
			"dez", "onze", "doze", "treze", "catorze",
			"quinze", "dezesseis", "dezessete", "dezoito", "dezenove",
		},
		tens: []string{
			"", "", "vinte", "trinta", "quarenta", "cinquenta",
			"sessenta", "setenta", "oitenta", "noventa",
		},
		hundreds: []string{
			"", "cento", "duzentos", "trezentos", "quatrocentos", "quinhentos",
			"seiscentos", "setecentos", "oitocentos", "novecentos",
		},
		ordinalUnits: []string{
			"", "primeiro", "segundo", "terceiro", "quarto", "quinto",
			"sexto", "sétimo", "oitavo", "nono",
		},
		ordinalTens: []string{
			"", "décimo", "vigésimo", "trigésimo", "quadragésimo", "quinquagésimo",
			"sexagésimo", "septuagésimo", "octogésimo", "nonagésimo",
		},
		ordinalHundreds: []string{
			"", "centésimo", "ducentésimo", "trecentésimo", "quadringentésimo", "quingentésimo",
			"sexcentésimo", "septingentésimo", "octingentésimo", "noningentésimo",
		},
	}
}

// numberGroup is one non-zero block of the number (millions, thousands or
// units) together with its three-digit value.
type numberGroup struct {
	words string
	value int64
}

// Cardinal returns the cardinal form of number, e.g. 1850 -> "mil oitocentos e cinquenta".
func (s *Speller) Cardinal(number int64) (string, error) {
	if number < 0 || number > MaxCardinal {
		return "", fmt.Errorf(errFmtOutOfRange, ErrOutOfRange, number, 0, MaxCardinal)
	}

	if number == 0 {
		return wordZero, nil
	}

	groups := make([]numberGroup, 0, 3)

	millions := number / numberBaseMillion
	if millions > 0 {
		groups = append(groups, numberGroup{words: s.millions(millions), value: millions})
	}

	thousands := (number / numberBaseThousand) % numberBaseThousand
	if thousands > 0 {
		groups = append(groups, numberGroup{words: s.thousands(thousands), value: thousands})
	}

	rest := number % numberBaseThousand
	if rest > 0 {
		groups = append(groups, numberGroup{words: s.underThousand(rest), value: rest})
	}

	return joinGroups(groups), nil
}

// Ordinal returns the masculine ordinal form of number, e.g. 21 -> "vigésimo primeiro".
func (s *Speller) Ordinal(number int64) (string, error) {
	if number < 1 || number > MaxOrdinal {
		return "", fmt.Errorf(errFmtOutOfRange, ErrOutOfRange, number, 1, MaxOrdinal)
	}

	parts := make([]string, 0, 4)

	if number >= numberBaseThousand {
		parts = append(parts, wordThousandth)
		number -= numberBaseThousand
	}

	if hundreds := number / numberBaseHundred; hundreds > 0 {
		parts = append(parts, s.ordinalHundreds[hundreds])
	}

	if tens := (number % numberBaseHundred) / numberBaseTen; tens > 0 {
		parts = append(parts, s.ordinalTens[tens])
	}

	if units := number % numberBaseTen; units > 0 {
		parts = append(parts, s.ordinalUnits[units])
	}

	return strings.Join(parts, separator), nil
}

// joinGroups puts "e" before the last group when that group is below one
// hundred or a whole number of hundreds ("mil e quinhentos", "dois mil e
// vinte"), and a plain space everywhere else ("mil oitocentos e cinquenta").
func joinGroups(groups []numberGroup) string {
	var builder strings.Builder

	for index, group := range groups {
		if index > 0 {
			if index == len(groups)-1 && isRoundGroup(group.value) {
				builder.WriteString(connector)
			} else {
				builder.WriteString(separator)
			}
		}

		builder.WriteString(group.words)
	}

	return builder.String()
}

func isRoundGroup(value int64) bool {
	return value < numberBaseHundred || value%numberBaseHundred == 0
}

func (s *Speller) millions(count int64) string {
	if count == 1 {
		return wordOne + separator + wordMillion
	}

	return s.underThousand(count) + separator + wordMillions
}

func (s *Speller) thousands(count int64) string {
	if count == 1 {
		return wordThousand
	}

	return s.underThousand(count) + separator + wordThousand
}

func (s *Speller) underThousand(number int64) string {
	if number == numberBaseHundred {
		return wordHundred
	}

	hundreds := number / numberBaseHundred
	rest := number % numberBaseHundred

	switch {
	case hundreds == 0:
		return s.underHundred(rest)
	case rest == 0:
		return s.hundreds[hundreds]
	default:
		return s.hundreds[hundreds] + connector + s.underHundred(rest)
	}
}

func (s *Speller) underHundred(number int64) string {
	switch {
	case number < numberBaseTen:
		return s.units[number]
	case number < numberTwenty:
		return s.teens[number-numberBaseTen]
	}

	tens := number / numberBaseTen
	units := number % numberBaseTen

	if units == 0 {
		return s.tens[tens]
	}

	return s.tens[tens] + connector + s.units[units]
}
