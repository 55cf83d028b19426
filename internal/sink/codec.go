package sink

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/hostbench/internal/ir"
)

// ErrCorrupt is returned for a record line that cannot be parsed or that
// breaks the sequence invariants.
var ErrCorrupt = errors.New("sink: corrupt record")

const (
	separator   = " | "
	completeTag = "COMPLETE"
)

var (
	escaper   = strings.NewReplacer(`\`, `\\`, `|`, `\|`, "\n", `\n`, "\r", `\r`)
	unescapes = map[byte]byte{'\\': '\\', '|': '|', 'n': '\n', 'r': '\r'}
)

// EncodeResult renders a step result as one record line, without the
// trailing newline.
func EncodeResult(r ir.StepResult) string {
	return strings.Join([]string{
		strconv.Itoa(r.Seq),
		escaper.Replace(r.StepName),
		r.Outcome.Tag(),
		escaper.Replace(r.Message),
	}, separator)
}

// EncodeComplete renders the completion sentinel line.
func EncodeComplete(total int) string {
	return completeTag + separator + strconv.Itoa(total)
}

// Line is one decoded record: either a step result or the sentinel.
type Line struct {
	Result   ir.StepResult
	Complete bool
	Total    int
}

// DecodeLine parses one record line (without its newline).
func DecodeLine(line string) (Line, error) {
	fields, err := splitFields(line)
	if err != nil {
		return Line{}, err
	}

	if fields[0] == completeTag {
		if len(fields) != 2 {
			return Line{}, fmt.Errorf("%w: sentinel has %d fields: %q", ErrCorrupt, len(fields), line)
		}
		total, err := strconv.Atoi(fields[1])
		if err != nil || total < 0 {
			return Line{}, fmt.Errorf("%w: bad total in %q", ErrCorrupt, line)
		}
		return Line{Complete: true, Total: total}, nil
	}

	if len(fields) != 4 {
		return Line{}, fmt.Errorf("%w: record has %d fields: %q", ErrCorrupt, len(fields), line)
	}
	seq, err := strconv.Atoi(fields[0])
	if err != nil {
		return Line{}, fmt.Errorf("%w: bad sequence index in %q", ErrCorrupt, line)
	}
	outcome, err := ir.ParseOutcome(fields[2])
	if err != nil {
		return Line{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	res := ir.StepResult{
		Seq:      seq,
		StepName: fields[1],
		Outcome:  outcome,
		Message:  fields[3],
	}
	if err := res.Validate(); err != nil {
		return Line{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return Line{Result: res}, nil
}

// splitFields splits a line on unescaped pipes and unescapes each field.
// Every pipe must be surrounded by single spaces, which are removed.
func splitFields(line string) ([]string, error) {
	var (
		fields []string
		cur    strings.Builder
	)
	flush := func(last bool) error {
		raw := cur.String()
		cur.Reset()
		if len(fields) > 0 {
			if !strings.HasPrefix(raw, " ") {
				return fmt.Errorf("%w: missing space after separator in %q", ErrCorrupt, line)
			}
			raw = raw[1:]
		}
		if !last {
			if !strings.HasSuffix(raw, " ") {
				return fmt.Errorf("%w: missing space before separator in %q", ErrCorrupt, line)
			}
			raw = raw[:len(raw)-1]
		}
		fields = append(fields, raw)
		return nil
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch c {
		case '\\':
			if i+1 >= len(line) {
				return nil, fmt.Errorf("%w: dangling escape in %q", ErrCorrupt, line)
			}
			u, ok := unescapes[line[i+1]]
			if !ok {
				return nil, fmt.Errorf("%w: unknown escape \\%c in %q", ErrCorrupt, line[i+1], line)
			}
			cur.WriteByte(u)
			i++
		case '|':
			if err := flush(false); err != nil {
				return nil, err
			}
		case '\n', '\r':
			return nil, fmt.Errorf("%w: raw line break in %q", ErrCorrupt, line)
		default:
			cur.WriteByte(c)
		}
	}
	if err := flush(true); err != nil {
		return nil, err
	}
	return fields, nil
}
