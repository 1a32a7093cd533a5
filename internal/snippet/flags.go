package snippet

import (
	"bufio"
	"io"

	"github.com/spf13/afero"

	"github.com/Norgate-AV/scracc/internal/codes"
)

// ScanFlags collects the extra compiler flags declared with //scracc: comments,
// in the order they appear. Only the given file is scanned; embedded files are not.
func ScanFlags(r io.Reader) ([]string, error) {
	var flags []string

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if f, ok := FlagComment(line); ok {
				flags = append(flags, f...)
			}
		}

		if err == io.EOF {
			return flags, nil
		}

		if err != nil {
			return nil, err
		}
	}
}

// ScanFlagsFile runs ScanFlags over the file at path.
func ScanFlagsFile(fs afero.Fs, path string) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, codes.IO("cannot open", path, err)
	}
	defer f.Close()

	flags, err := ScanFlags(f)
	if err != nil {
		return nil, codes.IO("cannot read", path, err)
	}

	return flags, nil
}
