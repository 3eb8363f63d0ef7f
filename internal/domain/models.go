package domain

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Size limits and accepted inputs of the conversion service.
const (
	MaxDocumentSize int64 = 10 * 1024 * 1024 // 10MB
	MaxAudioSize    int64 = 50 * 1024 * 1024 // 50MB

	MinSampleRate = 8000
	MaxSampleRate = 192000
)

// DocumentExtensions lists the extensions accepted by the document pipeline.
var DocumentExtensions = []string{".tex"}

// AudioExtensions lists the extensions accepted by the audio pipeline.
var AudioExtensions = []string{".ogg", ".opus", ".mp3", ".wav", ".m4a", ".aac", ".flac"}

// CandidateFile is a user-selected file. It is immutable once accepted.
type CandidateFile struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

// FileFromPath builds a CandidateFile backed by a file on disk.
func FileFromPath(path string) (*CandidateFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, IOError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return nil, IOError(fmt.Sprintf("cannot access file: %s", path), err)
	}
	if info.IsDir() {
		return nil, IOError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	return &CandidateFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FileFromBytes builds an in-memory CandidateFile.
func FileFromBytes(name string, data []byte) *CandidateFile {
	return &CandidateFile{
		Name: name,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Open returns a fresh reader over the file content.
func (f *CandidateFile) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, IOError(fmt.Sprintf("file %s has no content", f.Name), nil)
	}
	return f.open()
}

// Extension returns the lower-cased trailing dot-segment including the dot,
// or "" when the name has none.
func (f *CandidateFile) Extension() string {
	idx := strings.LastIndex(f.Name, ".")
	if idx < 0 || idx == len(f.Name)-1 {
		return ""
	}
	return strings.ToLower(f.Name[idx:])
}

// ValidationConstraint is fixed per pipeline.
type ValidationConstraint struct {
	AllowedExtensions []string
	MaxSize           int64
}

// DocumentOptions are attached to a LaTeX submission.
type DocumentOptions struct {
	AutoFix bool
}

// AudioFormat is a target codec of the audio pipeline.
type AudioFormat string

const (
	FormatMP3  AudioFormat = "mp3"
	FormatWAV  AudioFormat = "wav"
	FormatOGG  AudioFormat = "ogg"
	FormatM4A  AudioFormat = "m4a"
	FormatAAC  AudioFormat = "aac"
	FormatFLAC AudioFormat = "flac"
)

// AudioFormats lists supported target formats in display order.
var AudioFormats = []AudioFormat{FormatMP3, FormatWAV, FormatOGG, FormatM4A, FormatAAC, FormatFLAC}

// Bitrate is an allowed audio bitrate.
type Bitrate string

const (
	Bitrate128k Bitrate = "128k"
	Bitrate192k Bitrate = "192k"
	Bitrate256k Bitrate = "256k"
	Bitrate320k Bitrate = "320k"
)

// Bitrates lists allowed bitrates in ascending order.
var Bitrates = []Bitrate{Bitrate128k, Bitrate192k, Bitrate256k, Bitrate320k}

// AudioOptions are attached to an audio submission.
type AudioOptions struct {
	TargetFormat AudioFormat
	Bitrate      Bitrate
	SampleRate   int // 0 preserves the source rate
}

// DefaultAudioOptions mirrors the form defaults: mp3 at 192k, source rate.
func DefaultAudioOptions() AudioOptions {
	return AudioOptions{TargetFormat: FormatMP3, Bitrate: Bitrate192k}
}

// Validate checks enum membership and the sample rate range.
func (o AudioOptions) Validate() error {
	if !containsFormat(o.TargetFormat) {
		return OptionsError(fmt.Sprintf("unsupported target format %q (allowed: %s)", o.TargetFormat, joinFormats()))
	}
	if !containsBitrate(o.Bitrate) {
		return OptionsError(fmt.Sprintf("unsupported bitrate %q (allowed: %s)", o.Bitrate, joinBitrates()))
	}
	if o.SampleRate != 0 && (o.SampleRate < MinSampleRate || o.SampleRate > MaxSampleRate) {
		return OptionsError(fmt.Sprintf("sample rate must be between %d and %d Hz, got %d", MinSampleRate, MaxSampleRate, o.SampleRate))
	}
	return nil
}

func containsFormat(f AudioFormat) bool {
	for _, v := range AudioFormats {
		if v == f {
			return true
		}
	}
	return false
}

func containsBitrate(b Bitrate) bool {
	for _, v := range Bitrates {
		if v == b {
			return true
		}
	}
	return false
}

func joinFormats() string {
	parts := make([]string, len(AudioFormats))
	for i, f := range AudioFormats {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

func joinBitrates() string {
	parts := make([]string, len(Bitrates))
	for i, b := range Bitrates {
		parts[i] = string(b)
	}
	return strings.Join(parts, ", ")
}

// QueryParam is a single query string pair.
type QueryParam struct {
	Key   string
	Value string
}

// Query is an ordered list of query parameters. Unlike url.Values it keeps
// insertion order when encoded.
type Query []QueryParam

// Add appends a parameter.
func (q Query) Add(key, value string) Query {
	return append(q, QueryParam{Key: key, Value: value})
}

// Encode renders the parameters as a URL query string in insertion order.
func (q Query) Encode() string {
	var sb strings.Builder
	for i, p := range q {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}

// DocumentQuery encodes document options for POST /convert.
func DocumentQuery(o DocumentOptions) (Query, error) {
	return Query{}.Add("auto_fix", strconv.FormatBool(o.AutoFix)), nil
}

// AudioQuery encodes audio options for POST /convert-audio. The sample rate
// is only sent when set.
func AudioQuery(o AudioOptions) (Query, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	q := Query{}.
		Add("target_format", string(o.TargetFormat)).
		Add("bitrate", string(o.Bitrate))
	if o.SampleRate != 0 {
		q = q.Add("sample_rate", strconv.Itoa(o.SampleRate))
	}
	return q, nil
}

// ConversionJob is the service's record of one conversion attempt.
type ConversionJob struct {
	ID             string   `json:"id"`
	Success        bool     `json:"success"`
	Filename       string   `json:"filename"`
	TargetFormat   string   `json:"target_format,omitempty"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
	AutoFixApplied bool     `json:"auto_fix_applied,omitempty"`
	Duration       *float64 `json:"duration,omitempty"`
	FileSizeKB     *float64 `json:"file_size_kb,omitempty"`
}

// FailedJob builds the failure record stored when a submission fails.
func FailedJob(message string) *ConversionJob {
	return &ConversionJob{
		Success:  false,
		Errors:   []string{message},
		Warnings: []string{},
	}
}

// Clone returns a deep copy so callers can't mutate orchestrator state.
func (j *ConversionJob) Clone() *ConversionJob {
	if j == nil {
		return nil
	}
	c := *j
	c.Errors = append([]string(nil), j.Errors...)
	c.Warnings = append([]string(nil), j.Warnings...)
	if j.Duration != nil {
		d := *j.Duration
		c.Duration = &d
	}
	if j.FileSizeKB != nil {
		s := *j.FileSizeKB
		c.FileSizeKB = &s
	}
	return &c
}

// EventType represents the type of orchestrator event
type EventType string

const (
	EventFileAccepted   EventType = "file_accepted"
	EventFileRejected   EventType = "file_rejected"
	EventSubmitting     EventType = "submitting"
	EventProgress       EventType = "progress"
	EventSucceeded      EventType = "succeeded"
	EventFailed         EventType = "failed"
	EventDownloaded     EventType = "downloaded"
	EventDownloadFailed EventType = "download_failed"
	EventReset          EventType = "reset"
)

// Event is emitted by an orchestrator as it moves through its lifecycle.
type Event struct {
	Type     EventType   `json:"type"`
	Pipeline string      `json:"pipeline"`
	Progress int         `json:"progress"`
	Payload  interface{} `json:"payload,omitempty"`
	Time     time.Time   `json:"timestamp"`
}
