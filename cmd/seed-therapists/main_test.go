package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch-ai/internal/therapists"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

type recordingUpserter struct {
	saved  []therapists.Therapist
	failOn string
}

func (r *recordingUpserter) Upsert(_ context.Context, t therapists.Therapist) error {
	if t.Name == r.failOn {
		return errors.New("boom")
	}
	r.saved = append(r.saved, t)
	return nil
}

func TestParseSeedSampleFile(t *testing.T) {
	data, err := os.ReadFile("../../testdata/therapists.json")
	require.NoError(t, err)

	list, err := parseSeed(data)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Dr. Asha Rao", list[0].Name)
	assert.True(t, list[0].IsActive)
	assert.Contains(t, list[2].Specialties, "ptsd")
}

func TestParseSeedDerivesStableIDs(t *testing.T) {
	data := []byte(`{"therapists":[{"name":"Dr. Asha Rao"}]}`)
	first, err := parseSeed(data)
	require.NoError(t, err)
	second, err := parseSeed([]byte(`{"therapists":[{"name":"dr. asha rao"}]}`))
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestParseSeedValidation(t *testing.T) {
	_, err := parseSeed([]byte(`{"therapists":[{"bio":"no name"}]}`))
	assert.Error(t, err)

	_, err = parseSeed([]byte(`{"therapists":[{"name":"A","id":"not-a-uuid"}]}`))
	assert.Error(t, err)

	list, err := parseSeed([]byte(`{"therapists":[{"name":"A","isActive":false}]}`))
	require.NoError(t, err)
	assert.False(t, list[0].IsActive)
}

func TestSeedStopsOnFirstError(t *testing.T) {
	repo := &recordingUpserter{failOn: "B"}
	list := []therapists.Therapist{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}, {ID: "3", Name: "C"}}

	n, err := seed(context.Background(), repo, list, logging.New("error"))
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, repo.saved, 1)
}
