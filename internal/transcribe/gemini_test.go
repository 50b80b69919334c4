package transcribe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text     string
	err      error
	model    string
	contents []*genai.Content
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(f.text, genai.RoleModel),
		}},
	}, nil
}

func TestTranscribeSendsAudioAndInstruction(t *testing.T) {
	gen := &fakeGenerator{text: "  what is the dose of metformin  "}
	tr, err := NewTranscriber(gen, "gemini-2.5-flash")
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), []byte("fake-audio"), "audio/webm;codecs=opus")
	require.NoError(t, err)
	assert.Equal(t, "what is the dose of metformin", text)
	assert.Equal(t, "gemini-2.5-flash", gen.model)

	require.Len(t, gen.contents, 1)
	parts := gen.contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "audio/webm", parts[0].InlineData.MIMEType)
	assert.Equal(t, []byte("fake-audio"), parts[0].InlineData.Data)
	assert.Contains(t, parts[1].Text, "Transcribe")
}

func TestTranscribeEmptyResult(t *testing.T) {
	tr, err := NewTranscriber(&fakeGenerator{text: "   "}, "m")
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), []byte("x"), "audio/wav")
	assert.ErrorIs(t, err, ErrNoSpeech)

	_, err = tr.Transcribe(context.Background(), nil, "audio/wav")
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestTranscribeModelFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	tr, err := NewTranscriber(&fakeGenerator{err: boom}, "m")
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), []byte("x"), "audio/wav")
	assert.ErrorIs(t, err, boom)
}

func TestNormalizeMIME(t *testing.T) {
	assert.Equal(t, "audio/ogg", normalizeMIME("Audio/OGG", nil))
	assert.Equal(t, "audio/webm", normalizeMIME("application/octet-stream", []byte("no magic here")))
	assert.Equal(t, "audio/wave", normalizeMIME("", []byte("RIFF\x00\x00\x00\x00WAVEfmt ")))
}

func TestNewTranscriberValidation(t *testing.T) {
	_, err := NewTranscriber(nil, "m")
	assert.Error(t, err)
	_, err = NewTranscriber(&fakeGenerator{}, "")
	assert.Error(t, err)
}
