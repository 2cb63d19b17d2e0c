// ABOUTME: File-backed core that replays decoded audio one emulated frame at a time
// ABOUTME: Supports MP3, FLAC, WAV and Ogg Vorbis with optional looping
package source

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/retroaudio/retroaudio/internal/frontend"
)

// DefaultFileFPS is the frame rate a file core emulates
const DefaultFileFPS = 60.0

// Extensions lists the file types NewFile accepts
var Extensions = []string{".mp3", ".flac", ".wav", ".ogg"}

// FileConfig holds file core configuration
type FileConfig struct {
	Path string
	FPS  float64
	Loop bool
}

// File is a core that plays an audio file at its native rate
type File struct {
	config FileConfig
	title  string
	info   frontend.AVInfo

	file     *os.File
	stream   pcmStream
	open     func(f *os.File) (pcmStream, error)
	leftover float64
	buf      []int16
	eof      bool
	mu       sync.Mutex
}

func openerFor(ext string) (func(f *os.File) (pcmStream, error), error) {
	switch ext {
	case ".mp3":
		return func(f *os.File) (pcmStream, error) { return newMP3Stream(f) }, nil
	case ".flac":
		return func(f *os.File) (pcmStream, error) { return newFLACStream(f) }, nil
	case ".wav":
		return func(f *os.File) (pcmStream, error) { return newWAVStream(f) }, nil
	case ".ogg", ".oga":
		return func(f *os.File) (pcmStream, error) { return newOggStream(f) }, nil
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: %s)", ext, strings.Join(Extensions, ", "))
	}
}

// NewFile opens an audio file as a core
func NewFile(config FileConfig) (*File, error) {
	if config.FPS <= 0 {
		config.FPS = DefaultFileFPS
	}

	open, err := openerFor(strings.ToLower(filepath.Ext(config.Path)))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	stream, err := open(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if stream.SampleRate() <= 0 {
		f.Close()
		return nil, fmt.Errorf("invalid sample rate %d in %s", stream.SampleRate(), config.Path)
	}

	info := frontend.AVInfo{SampleRate: float64(stream.SampleRate()), FPS: config.FPS}
	if err := checkFrameSize(info); err != nil {
		f.Close()
		return nil, err
	}

	filename := filepath.Base(config.Path)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	log.Printf("Loaded %s (sample rate: %d Hz, %.2f fps)", title, stream.SampleRate(), config.FPS)

	return &File{
		config: config,
		title:  title,
		info:   info,
		file:   f,
		stream: stream,
		open:   open,
	}, nil
}

// Title returns the file name without extension
func (s *File) Title() string { return s.title }

// AVInfo returns the file's timing
func (s *File) AVInfo() frontend.AVInfo { return s.info }

// rewind restarts decoding from the beginning of the file
func (s *File) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	stream, err := s.open(s.file)
	if err != nil {
		return fmt.Errorf("failed to create new decoder: %w", err)
	}
	s.stream = stream
	return nil
}

// RunFrame emits one frame's worth of audio. Without Loop it returns io.EOF
// once the file is exhausted.
func (s *File) RunFrame(sink frontend.AudioSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.eof {
		return io.EOF
	}

	exact := s.info.SampleRate/s.info.FPS + s.leftover
	frames := int(exact)
	s.leftover = exact - float64(frames)

	if cap(s.buf) < frames*2 {
		s.buf = make([]int16, frames*2)
	}
	buf := s.buf[:frames*2]

	filled := 0
	rewound := false
	for filled < len(buf) {
		n, err := s.stream.Read(buf[filled:])
		filled += n
		if n > 0 {
			rewound = false
		}
		if err == nil {
			if n == 0 {
				// Decoder made no progress; try again next frame
				break
			}
			continue
		}
		if err != io.EOF {
			return fmt.Errorf("failed to decode %s: %w", s.title, err)
		}
		// EOF straight after a rewind means the file holds no audio
		if !s.config.Loop || rewound {
			s.eof = true
			break
		}
		if err := s.rewind(); err != nil {
			return err
		}
		rewound = true
	}

	if filled > 0 {
		sink.SampleBatch(buf[:filled], filled/2)
	} else if s.eof {
		return io.EOF
	}
	return nil
}

// Close closes the file
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
