package synckit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sync-merge/errors"
)

func TestParseStrategy(t *testing.T) {
	tests := map[string]Strategy{
		"LastWriterWins":    LastWriterWins,
		"last_writer_wins":  LastWriterWins,
		"lww":               LastWriterWins,
		"first-writer-wins": FirstWriterWins,
		"FWW":               FirstWriterWins,
		"field_level_merge": FieldLevelMerge,
		"keep_both":         KeepBoth,
		"Custom":            Custom,
	}
	for in, want := range tests {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStrategy("newest")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindConfiguration))
}

func TestStrategy_String(t *testing.T) {
	for s := range strategyNames {
		parsed, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	assert.Equal(t, "Strategy(42)", Strategy(42).String())
}

func TestUnconfigured(t *testing.T) {
	assert.Equal(t, "unconfigured", Unconfigured.String())

	_, err := ParseStrategy("unconfigured")
	require.Error(t, err)

	r := newTestResolver(t)
	err = r.ConfigureType("doc", Unconfigured)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindConfiguration))
}
