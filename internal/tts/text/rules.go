package text

import (
	"fmt"
	"maps"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

// Replacement is a literal find/replace pair applied before any pattern work.
type Replacement struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// AbbreviationRule maps an abbreviated form to the words a narrator should say.
//
// Form is matched case-insensitively at a word boundary. When Form ends in a
// period it must be followed by whitespace or the end of the line. Rules with
// AfterNumber set only match right after a digit ("10 km", "5 a."), which keeps
// short forms that are also common words from being expanded in prose.
type AbbreviationRule struct {
	Form        string `toml:"form"`
	Expansion   string `toml:"expansion"`
	AfterNumber bool   `toml:"after_number"`
}

// Rules is the static rule table used by the Preprocessor. It is copied when a
// Preprocessor is built and never mutated afterwards.
type Rules struct {
	Boilerplate     []string           `toml:"boilerplate"`
	Corrections     []Replacement      `toml:"corrections"`
	Abbreviations   []AbbreviationRule `toml:"abbreviations"`
	ChapterNumerals map[string]string  `toml:"chapter_numerals"`
}

// DefaultRules returns a fresh copy of the built-in pt-BR rule table.
func DefaultRules() Rules {
	return Rules{
		Boilerplate: []string{
			"Este livro foi distribuído cortesia de:",
			"Para ter acesso próprio a leituras e ebooks ilimitados GRÁTIS hoje, visite:",
			"Compartilhe este livro com todos e cada um dos seus amigos automaticamente,",
			"selecionando uma das opções abaixo:",
			"Esta obra foi digitalizada sem fins comerciais.",
		},
		Corrections: []Replacement{
			{From: "\u00a0", To: " "},
			{From: "\u00ad", To: ""},
			{From: "\u200b", To: ""},
			{From: "\ufeff", To: ""},
			{From: "\ufb01", To: "fi"},
			{From: "\ufb02", To: "fl"},
			{From: "\ufb00", To: "ff"},
		},
		Abbreviations: []AbbreviationRule{
			{Form: "a.", Expansion: "ares", AfterNumber: true},
			{Form: "km", Expansion: "quilômetros", AfterNumber: true},
			{Form: "kg", Expansion: "quilos", AfterNumber: true},
			{Form: "cm", Expansion: "centímetros", AfterNumber: true},
			{Form: "mm", Expansion: "milímetros", AfterNumber: true},
			{Form: "ml", Expansion: "mililitros", AfterNumber: true},
			{Form: "min", Expansion: "minutos", AfterNumber: true},
			{Form: "h", Expansion: "horas", AfterNumber: true},
			{Form: "m", Expansion: "metros", AfterNumber: true},
			{Form: "Dr.", Expansion: "Doutor"},
			{Form: "D.", Expansion: "Dona"},
			{Form: "Dra.", Expansion: "Doutora"},
			{Form: "Sr.", Expansion: "Senhor"},
			{Form: "Sra.", Expansion: "Senhora"},
			{Form: "Srta.", Expansion: "Senhorita"},
			{Form: "Prof.", Expansion: "Professor"},
			{Form: "Profa.", Expansion: "Professora"},
			{Form: "Eng.", Expansion: "Engenheiro"},
			{Form: "Engª.", Expansion: "Engenheira"},
			{Form: "Adm.", Expansion: "Administrador"},
			{Form: "Adv.", Expansion: "Advogado"},
			{Form: "Exmo.", Expansion: "Excelentíssimo"},
			{Form: "Exma.", Expansion: "Excelentíssima"},
			{Form: "V.Exa.", Expansion: "Vossa Excelência"},
			{Form: "V.Sa.", Expansion: "Vossa Senhoria"},
			{Form: "Av.", Expansion: "Avenida"},
			{Form: "R.", Expansion: "Rua"},
			{Form: "Km.", Expansion: "Quilômetro"},
			{Form: "Etc.", Expansion: "etcétera"},
			{Form: "Ref.", Expansion: "Referência"},
			{Form: "Pág.", Expansion: "Página"},
			{Form: "Págs.", Expansion: "Páginas"},
			{Form: "Pag.", Expansion: "Página"},
			{Form: "Pags.", Expansion: "Páginas"},
			{Form: "Fl.", Expansion: "Folha"},
			{Form: "Fls.", Expansion: "Folhas"},
			{Form: "Pe.", Expansion: "Padre"},
			{Form: "Dept.", Expansion: "Departamento"},
			{Form: "Depto.", Expansion: "Departamento"},
			{Form: "Univ.", Expansion: "Universidade"},
			{Form: "Inst.", Expansion: "Instituição"},
			{Form: "Est.", Expansion: "Estado"},
			{Form: "Tel.", Expansion: "Telefone"},
			{Form: "EUA.", Expansion: "Estados Unidos da América"},
			{Form: "EUA", Expansion: "Estados Unidos da América"},
			{Form: "Ed.", Expansion: "Edição"},
			{Form: "Ltda.", Expansion: "Limitada"},
			{Form: "CEP", Expansion: "Código de Endereçamento Postal"},
			{Form: "CNPJ", Expansion: "Cadastro Nacional da Pessoa Jurídica"},
			{Form: "CPF", Expansion: "Cadastro de Pessoas Físicas"},
		},
		ChapterNumerals: map[string]string{
			"UM": "1", "DOIS": "2", "TRÊS": "3", "TRES": "3", "QUATRO": "4",
			"CINCO": "5", "SEIS": "6", "SETE": "7", "OITO": "8", "NOVE": "9",
			"DEZ": "10", "ONZE": "11", "DOZE": "12", "TREZE": "13", "CATORZE": "14",
			"QUATORZE": "14", "QUINZE": "15", "DEZESSEIS": "16", "DEZESSETE": "17",
			"DEZOITO": "18", "DEZENOVE": "19", "VINTE": "20",
		},
	}
}

// Merge returns a new rule table holding r followed by extra. Numerals in
// extra override numerals with the same key in r.
func (r Rules) Merge(extra Rules) Rules {
	merged := Rules{
		Boilerplate:     slices.Concat(r.Boilerplate, extra.Boilerplate),
		Corrections:     slices.Concat(r.Corrections, extra.Corrections),
		Abbreviations:   slices.Concat(r.Abbreviations, extra.Abbreviations),
		ChapterNumerals: make(map[string]string, len(r.ChapterNumerals)+len(extra.ChapterNumerals)),
	}

	maps.Copy(merged.ChapterNumerals, r.ChapterNumerals)
	maps.Copy(merged.ChapterNumerals, extra.ChapterNumerals)

	return merged
}

// DecodeRules parses a TOML rule file and merges it over DefaultRules.
func DecodeRules(data []byte) (Rules, error) {
	var extra Rules

	err := toml.Unmarshal(data, &extra)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to decode rules: %w", err)
	}

	for _, rule := range extra.Abbreviations {
		if rule.Form == "" {
			return Rules{}, fmt.Errorf("%w: expansion %q", ErrEmptyAbbreviation, rule.Expansion)
		}
	}

	return DefaultRules().Merge(extra), nil
}

// clone returns a deep copy so later changes to the caller's slices and map
// never reach a built Preprocessor.
func (r Rules) clone() Rules {
	return Rules{
		Boilerplate:     slices.Clone(r.Boilerplate),
		Corrections:     slices.Clone(r.Corrections),
		Abbreviations:   slices.Clone(r.Abbreviations),
		ChapterNumerals: maps.Clone(r.ChapterNumerals),
	}
}
