package cfg

import "os"

type scanner struct {
	data []byte
	err  error
}

func NewFileScanner() *scanner {
	return &scanner{}
}

func (s *scanner) Err() error {
	return s.err
}

func (s *scanner) Data() []byte {
	return s.data
}

// Read appends the content of file to the buffer. Once an error occurred,
// subsequent reads are skipped so the first error is preserved.
func (s *scanner) Read(file string) {
	if s.err != nil {
		return
	}

	var bs []byte
	bs, s.err = os.ReadFile(file)
	if s.err != nil {
		return
	}

	s.data = append(s.data, bs...)
	s.data = append(s.data, '\n')
}
