package simendpoint

import (
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/sparkmicro/audiocore/internal/errors"
)

// WAVSource is a producer endpoint that reads 16-bit PCM samples out of
// a WAV file, grounded on the decoder/PCMBuffer loop in birdnet.go's
// readAudioData: open once, decode the header, then pull fixed-size
// int buffers out of decoder.PCMBuffer per Produce call.
type WAVSource struct {
	file    *os.File
	decoder *wav.Decoder
	channels int
	buf     *audio.IntBuffer
	eof     bool
}

// OpenWAVSource opens path and validates it decodes as a WAV file.
// Channel count is taken from the file itself.
func OpenWAVSource(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryEndpoint).Build()
	}
	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		f.Close()
		return nil, errors.New(errInvalidWAV).Category(errors.CategoryEndpoint).Build()
	}
	channels := int(d.NumChans)
	if channels == 0 {
		channels = 1
	}
	return &WAVSource{
		file:     f,
		decoder:  d,
		channels: channels,
		buf:      &audio.IntBuffer{Format: &audio.Format{SampleRate: int(d.SampleRate), NumChannels: channels}},
	}, nil
}

type wavErr string

func (e wavErr) Error() string { return string(e) }

const errInvalidWAV = wavErr("simendpoint: input is not a valid WAV file")

// SampleRate reports the file's sample rate in Hz.
func (s *WAVSource) SampleRate() int { return int(s.decoder.SampleRate) }

// Channels reports the file's channel count.
func (s *WAVSource) Channels() int { return s.channels }

// Produce decodes up to len(buf)/2 16-bit little-endian samples into
// buf and returns the byte count written; 0 once the file is exhausted.
func (s *WAVSource) Produce(buf []byte) (int, error) {
	if s.eof {
		return 0, nil
	}
	want := len(buf) / 2
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && err != io.EOF {
		return 0, errors.New(err).Category(errors.CategoryEndpoint).Build()
	}
	if n == 0 {
		s.eof = true
		return 0, nil
	}
	for i := 0; i < n; i++ {
		v := int16(s.buf.Data[i])
		buf[2*i] = byte(v)
		buf[2*i+1] = byte(v >> 8)
	}
	return n * 2, nil
}

// Consume is never called; WAVSource is producer-only.
func (s *WAVSource) Consume(_ []byte) (int, error) { return 0, nil }

// Start is a no-op; the file is already open.
func (s *WAVSource) Start() error { return nil }

// Stop closes the underlying file.
func (s *WAVSource) Stop() error { return s.file.Close() }

// WAVSink is a consumer endpoint that appends every packet it receives
// to a WAV file, closing and finalizing the header on Stop.
type WAVSink struct {
	file    *os.File
	encoder *wav.Encoder
}

// CreateWAVSink creates (truncating) path and prepares a mono/stereo
// 16-bit PCM encoder at sampleRate.
func CreateWAVSink(path string, sampleRate, channels int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryEndpoint).Build()
	}
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	return &WAVSink{file: f, encoder: enc}, nil
}

// Produce is never called; WAVSink is consumer-only.
func (s *WAVSink) Produce(_ []byte) (int, error) { return 0, nil }

// Consume decodes buf as 16-bit little-endian samples and writes them
// to the WAV file.
func (s *WAVSink) Consume(buf []byte) (int, error) {
	n := len(buf) / 2
	ib := &audio.IntBuffer{
		Data:   make([]int, n),
		Format: &audio.Format{SampleRate: int(s.encoder.SampleRate), NumChannels: s.encoder.NumChans},
	}
	for i := 0; i < n; i++ {
		v := int16(buf[2*i]) | int16(buf[2*i+1])<<8
		ib.Data[i] = int(v)
	}
	if err := s.encoder.Write(ib); err != nil {
		return 0, errors.New(err).Category(errors.CategoryEndpoint).Build()
	}
	return len(buf), nil
}

// Start is a no-op; the encoder is ready as soon as CreateWAVSink
// returns.
func (s *WAVSink) Start() error { return nil }

// Stop finalizes the WAV header and closes the file.
func (s *WAVSink) Stop() error {
	if err := s.encoder.Close(); err != nil {
		s.file.Close()
		return errors.New(err).Category(errors.CategoryEndpoint).Build()
	}
	return s.file.Close()
}
