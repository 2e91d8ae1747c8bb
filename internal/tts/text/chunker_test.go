package text_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/book-expert/narrator/internal/tts/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNarration = "CAPÍTULO 1.\n\nO Começo.\n\n" +
	"Era uma vez um menino que morava perto do mar. Todos os dias ele olhava as ondas! " +
	"Será que um dia iria navegar? Ninguém sabia… Nem mesmo ele.\n\n" +
	"Um parágrafo curto.\n\n" +
	"Umapalavraenormesemespaçosquenãocabeemlugarnenhumdeverdade."

func TestChunkText_Bounds(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{1, 7, 20, 45, 80, 500} {
		chunks := text.ChunkText(sampleNarration, limit)
		require.NotEmpty(t, chunks)

		for index, chunk := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(chunk.Text), limit, "limit %d chunk %d", limit, index)
			assert.NotEmpty(t, strings.TrimSpace(chunk.Text), "limit %d chunk %d", limit, index)
			assert.Equal(t, index+1, chunk.Index)
			assert.Equal(t, len(chunks), chunk.Total)
		}
	}
}

func TestChunkText_PreservesWords(t *testing.T) {
	t.Parallel()

	// Limits large enough that no single word is hard-sliced.
	for _, limit := range []int{70, 120, 500} {
		chunks := text.ChunkText(sampleNarration, limit)

		pieces := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			pieces = append(pieces, chunk.Text)
		}

		assert.Equal(t, strings.Fields(sampleNarration), strings.Fields(strings.Join(pieces, " ")), "limit %d", limit)
	}
}

func TestChunkText_Deterministic(t *testing.T) {
	t.Parallel()

	first := text.ChunkText(sampleNarration, 60)
	second := text.ChunkText(sampleNarration, 60)

	assert.Equal(t, first, second)
}

func TestChunkText_OneChunkPerParagraph(t *testing.T) {
	t.Parallel()

	chunks := text.ChunkText("Um.\n\nDois.\n\nTrês.", text.DefaultMaxChunkChars)

	require.Len(t, chunks, 3)
	assert.Equal(t, text.Chunk{Index: 1, Total: 3, Text: "Um."}, chunks[0])
	assert.Equal(t, text.Chunk{Index: 2, Total: 3, Text: "Dois."}, chunks[1])
	assert.Equal(t, text.Chunk{Index: 3, Total: 3, Text: "Três."}, chunks[2])
}

func TestChunkText_LongParagraphKeepsNeighboursApart(t *testing.T) {
	t.Parallel()

	chunks := text.ChunkText("Curto.\n\nPrimeira frase longa. Segunda frase longa.\n\nFim.", 25)

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}

	assert.Equal(t, []string{"Curto.", "Primeira frase longa.", "Segunda frase longa.", "Fim."}, texts)
}

func TestChunkText_SplitsSentences(t *testing.T) {
	t.Parallel()

	chunks := text.ChunkText("Primeira frase. Segunda frase! Terceira?", 20)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Primeira frase.", chunks[0].Text)
	assert.Equal(t, "Segunda frase!", chunks[1].Text)
	assert.Equal(t, "Terceira?", chunks[2].Text)
}

func TestChunkText_HardSlice(t *testing.T) {
	t.Parallel()

	chunks := text.ChunkText("abcdefghij", 4)

	require.Len(t, chunks, 3)
	assert.Equal(t, "abcd", chunks[0].Text)
	assert.Equal(t, "efgh", chunks[1].Text)
	assert.Equal(t, "ij", chunks[2].Text)
}

func TestChunkText_EmptyInput(t *testing.T) {
	t.Parallel()

	assert.Empty(t, text.ChunkText("", 100))
	assert.Empty(t, text.ChunkText(" \n\n \t", 100))
}

func TestChunkText_DefaultLimit(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("palavra ", 2000)

	chunks := text.ChunkText(long, 0)

	require.Len(t, chunks, 3)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk.Text), text.DefaultMaxChunkChars)
	}
}
