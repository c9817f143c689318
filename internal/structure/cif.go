package structure

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

// ErrCIF is returned, wrapped, when a CIF document lacks the fields needed to build a structure.
var ErrCIF = errors.New("invalid CIF")

var cellTags = [6]string{
	"_cell_length_a", "_cell_length_b", "_cell_length_c",
	"_cell_angle_alpha", "_cell_angle_beta", "_cell_angle_gamma",
}

// ReadCIF parses the first data block of a P1 CIF document. Only the cell
// parameters and the _atom_site loop are read; symmetry operations are ignored.
func ReadCIF(r io.Reader) (*Structure, error) {
	tokens, err := tokenizeCIF(r)
	if err != nil {
		return nil, err
	}

	s := &Structure{}
	values := make(map[string]string)
	var sites []map[string]string

	for i := 0; i < len(tokens); {
		tok := tokens[i]
		lower := strings.ToLower(tok)
		switch {
		case strings.HasPrefix(lower, "data_"):
			if s.Name != "" {
				i = len(tokens)
				continue
			}
			s.Name = tok[len("data_"):]
			i++
		case lower == "loop_":
			i++
			var headers []string
			for i < len(tokens) && strings.HasPrefix(tokens[i], "_") {
				headers = append(headers, strings.ToLower(tokens[i]))
				i++
			}
			if len(headers) == 0 {
				return nil, fmt.Errorf("%w: loop_ without tags", ErrCIF)
			}
			var rows []map[string]string
			for i < len(tokens) && !isReserved(tokens[i]) {
				if i+len(headers) > len(tokens) {
					return nil, fmt.Errorf("%w: truncated loop row", ErrCIF)
				}
				row := make(map[string]string, len(headers))
				for k, h := range headers {
					row[h] = tokens[i+k]
				}
				rows = append(rows, row)
				i += len(headers)
			}
			if len(headers) > 0 && strings.HasPrefix(headers[0], "_atom_site_") && sites == nil {
				sites = rows
			}
		case strings.HasPrefix(tok, "_"):
			if i+1 >= len(tokens) {
				return nil, fmt.Errorf("%w: tag %s has no value", ErrCIF, tok)
			}
			values[lower] = tokens[i+1]
			i += 2
		default:
			i++
		}
	}

	var cellParams [6]float64
	for k, tag := range cellTags {
		raw, ok := values[tag]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrCIF, tag)
		}
		v, err := parseCIFNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCIF, tag, err)
		}
		cellParams[k] = v
	}
	s.Cell, err = CellFromParameters(cellParams[0], cellParams[1], cellParams[2], cellParams[3], cellParams[4], cellParams[5])
	if err != nil {
		return nil, err
	}

	for n, row := range sites {
		atom, hasCharge, err := siteAtom(s.Cell, row)
		if err != nil {
			return nil, fmt.Errorf("%w: atom site %d: %v", ErrCIF, n+1, err)
		}
		s.HasCharges = s.HasCharges || hasCharge
		s.Atoms = append(s.Atoms, atom)
	}
	return s, nil
}

// ReadCIFBytes is ReadCIF over an in-memory document
func ReadCIFBytes(data []byte) (*Structure, error) {
	return ReadCIF(bytes.NewReader(data))
}

func siteAtom(cell Cell, row map[string]string) (Atom, bool, error) {
	atom := Atom{Label: row["_atom_site_label"], Symbol: row["_atom_site_type_symbol"]}
	if atom.Symbol == "" || atom.Symbol == "?" || atom.Symbol == "." {
		atom.Symbol = SymbolFromLabel(atom.Label)
	}
	if atom.Label == "" {
		atom.Label = atom.Symbol
	}
	if atom.Symbol == "" {
		return Atom{}, false, fmt.Errorf("no element symbol")
	}

	coords := func(prefix string) (utils.Vec3, bool, error) {
		var v utils.Vec3
		for k, axis := range []string{"x", "y", "z"} {
			raw, ok := row[prefix+axis]
			if !ok {
				return v, false, nil
			}
			f, err := parseCIFNumber(raw)
			if err != nil {
				return v, true, fmt.Errorf("%s%s: %v", prefix, axis, err)
			}
			v[k] = f
		}
		return v, true, nil
	}

	frac, ok, err := coords("_atom_site_fract_")
	if err != nil {
		return Atom{}, false, err
	}
	if ok {
		atom.Position = cell.ToCartesian(frac)
	} else {
		cart, ok, err := coords("_atom_site_cartn_")
		if err != nil {
			return Atom{}, false, err
		}
		if !ok {
			return Atom{}, false, fmt.Errorf("no coordinates")
		}
		atom.Position = cart
	}

	raw, ok := row["_atom_site_charge"]
	if !ok || raw == "?" || raw == "." {
		return atom, false, nil
	}
	q, err := parseCIFNumber(raw)
	if err != nil {
		return Atom{}, false, fmt.Errorf("_atom_site_charge: %v", err)
	}
	atom.Charge = q
	return atom, true, nil
}

// WriteCIF writes s as a P1 CIF document with fractional coordinates.
func WriteCIF(w io.Writer, s *Structure) error {
	if err := s.Cell.Validate(); err != nil {
		return err
	}
	name := s.Name
	if name == "" {
		name = "structure"
	}
	bw := bufio.NewWriter(w)
	lengths, angles := s.Cell.Lengths(), s.Cell.Angles()

	fmt.Fprintf(bw, "data_%s\n\n", strings.ReplaceAll(name, " ", "_"))
	fmt.Fprintf(bw, "_symmetry_space_group_name_H-M    'P 1'\n")
	fmt.Fprintf(bw, "_symmetry_Int_Tables_number       1\n\n")
	for k := 0; k < 3; k++ {
		fmt.Fprintf(bw, "%-33s %.6f\n", cellTags[k], lengths[k])
	}
	for k := 0; k < 3; k++ {
		fmt.Fprintf(bw, "%-33s %.6f\n", cellTags[k+3], angles[k])
	}
	fmt.Fprintf(bw, "\nloop_\n_atom_site_label\n_atom_site_type_symbol\n")
	fmt.Fprintf(bw, "_atom_site_fract_x\n_atom_site_fract_y\n_atom_site_fract_z\n")
	if s.HasCharges {
		fmt.Fprintf(bw, "_atom_site_charge\n")
	}
	for _, a := range s.Atoms {
		f := s.Cell.ToFractional(a.Position)
		label := a.Label
		if label == "" {
			label = a.Symbol
		}
		fmt.Fprintf(bw, "%-8s %-3s %12.8f %12.8f %12.8f", label, a.Symbol, f[0], f[1], f[2])
		if s.HasCharges {
			fmt.Fprintf(bw, " %10.6f", a.Charge)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// CIFBytes renders s with WriteCIF
func CIFBytes(s *Structure) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCIF(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isReserved(tok string) bool {
	lower := strings.ToLower(tok)
	return strings.HasPrefix(tok, "_") || lower == "loop_" || strings.HasPrefix(lower, "data_")
}

// parseCIFNumber parses a numeric value, dropping a standard uncertainty such as "12.345(6)".
func parseCIFNumber(raw string) (float64, error) {
	if idx := strings.IndexByte(raw, '('); idx >= 0 {
		raw = raw[:idx]
	}
	return strconv.ParseFloat(raw, 64)
}

// tokenizeCIF splits a CIF document into whitespace separated tokens. Quoted
// strings and semicolon text fields become single tokens; comments are dropped.
func tokenizeCIF(r io.Reader) ([]string, error) {
	var tokens []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var text *strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if text != nil {
			if strings.HasPrefix(line, ";") {
				tokens = append(tokens, strings.TrimSpace(text.String()))
				text = nil
				line = line[1:]
			} else {
				text.WriteString(line)
				text.WriteByte('\n')
				continue
			}
		} else if strings.HasPrefix(line, ";") {
			text = &strings.Builder{}
			text.WriteString(line[1:])
			text.WriteByte('\n')
			continue
		}
		for i := 0; i < len(line); {
			c := line[i]
			switch {
			case c == ' ' || c == '\t':
				i++
			case c == '#':
				i = len(line)
			case c == '\'' || c == '"':
				end := closingQuote(line, i+1, c)
				tokens = append(tokens, line[i+1:end])
				i = end + 1
			default:
				j := i
				for j < len(line) && line[j] != ' ' && line[j] != '\t' {
					j++
				}
				tokens = append(tokens, line[i:j])
				i = j
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if text != nil {
		return nil, fmt.Errorf("%w: unterminated text field", ErrCIF)
	}
	return tokens, nil
}

// closingQuote finds a quote character followed by whitespace or end of line
func closingQuote(line string, from int, q byte) int {
	for j := from; j < len(line); j++ {
		if line[j] == q && (j+1 == len(line) || line[j+1] == ' ' || line[j+1] == '\t') {
			return j
		}
	}
	return len(line)
}
