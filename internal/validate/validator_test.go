package validate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/xtox/internal/domain"
)

var (
	documentConstraint = domain.ValidationConstraint{AllowedExtensions: domain.DocumentExtensions, MaxSize: domain.MaxDocumentSize}
	audioConstraint    = domain.ValidationConstraint{AllowedExtensions: domain.AudioExtensions, MaxSize: domain.MaxAudioSize}
)

func sized(name string, size int64) *domain.CandidateFile {
	f := domain.FileFromBytes(name, nil)
	f.Size = size
	return f
}

func TestValidate_NothingSelected(t *testing.T) {
	f, err := Validate(nil, documentConstraint)
	assert.Nil(t, f)
	assert.NoError(t, err)
}

func TestValidate_AcceptsAllowedFiles(t *testing.T) {
	tests := []struct {
		file       string
		size       int64
		constraint domain.ValidationConstraint
	}{
		{"paper.tex", 5 * 1024 * 1024, documentConstraint},
		{"Thesis.TEX", domain.MaxDocumentSize, documentConstraint},
		{"empty.tex", 0, documentConstraint},
		{"voice.opus", 1024, audioConstraint},
		{"song.MP3", domain.MaxAudioSize, audioConstraint},
		{"take.flac", 20 * 1024 * 1024, audioConstraint},
		{"clip.m4a", 1, audioConstraint},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			in := sized(tt.file, tt.size)
			got, err := Validate(in, tt.constraint)
			require.NoError(t, err)
			assert.Same(t, in, got)
		})
	}
}

func TestValidate_RejectsDisallowedExtension(t *testing.T) {
	tests := []struct {
		file       string
		constraint domain.ValidationConstraint
	}{
		{"paper.pdf", documentConstraint},
		{"paper", documentConstraint},
		{"paper.tex.bak", documentConstraint},
		{"notes.txt", audioConstraint},
		{"video.mp4", audioConstraint},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := Validate(sized(tt.file, 10), tt.constraint)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeRejected))
			for _, ext := range tt.constraint.AllowedExtensions {
				assert.Contains(t, domain.UserMessage(err), ext)
			}
		})
	}
}

func TestValidate_DocumentMessage(t *testing.T) {
	_, err := Validate(sized("a.md", 1), documentConstraint)
	assert.Equal(t, "Please select a .tex file", domain.UserMessage(err))
}

func TestValidate_RejectsOversize(t *testing.T) {
	_, err := Validate(sized("song.mp3", 60*1024*1024), audioConstraint)
	require.Error(t, err)
	assert.Equal(t, "File size exceeds 50MB limit", domain.UserMessage(err))

	_, err = Validate(sized("paper.tex", domain.MaxDocumentSize+1), documentConstraint)
	assert.Equal(t, "File size exceeds 10MB limit", domain.UserMessage(err))
}

func TestValidate_LimitIsRoundedMegabytes(t *testing.T) {
	limits := []int64{
		1024 * 1024,
		1536 * 1024,
		1024*1024 + 100,
		2*1024*1024 - 1,
		700 * 1024,
		100 * 1024 * 1024,
	}

	for _, max := range limits {
		t.Run(fmt.Sprint(max), func(t *testing.T) {
			c := domain.ValidationConstraint{AllowedExtensions: []string{".tex"}, MaxSize: max}
			_, err := Validate(sized("a.tex", max+1), c)
			require.Error(t, err)
			want := fmt.Sprintf("exceeds %dMB limit", LimitMB(max))
			assert.True(t, strings.HasSuffix(domain.UserMessage(err), want), domain.UserMessage(err))
		})
	}

	assert.Equal(t, int64(2), LimitMB(1536*1024))
	assert.Equal(t, int64(1), LimitMB(700*1024))
	assert.Equal(t, int64(10), LimitMB(domain.MaxDocumentSize))
}

func TestValidate_ExtensionWithoutDot(t *testing.T) {
	c := domain.ValidationConstraint{AllowedExtensions: []string{"TEX"}, MaxSize: 10}
	_, err := Validate(sized("a.tex", 1), c)
	assert.NoError(t, err)
}
