package gsplat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Property names used by gaussian splatting tools. Normals are present in
// the files but always zero, so they are read and ignored.
var splatProperties = map[string]bool{
	"x": true, "y": true, "z": true,
	"f_dc_0": true, "f_dc_1": true, "f_dc_2": true,
	"opacity": true,
	"scale_0": true, "scale_1": true, "scale_2": true,
	"rot_0": true, "rot_1": true, "rot_2": true, "rot_3": true,
}

// maxVertexCount caps the splat allocation for a single file. Scans of a
// full room stay in the tens of millions; a larger count means a corrupt
// header.
const maxVertexCount = 1 << 28

type plyHeader struct {
	count      int
	properties []string
}

type plyParser struct {
	r *bufio.Reader
}

func (p *plyParser) readHeader() (*plyHeader, error) {
	magic, err := p.r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(magic) != "ply" {
		return nil, fmt.Errorf("ply: bad magic: %q", strings.TrimSpace(magic))
	}

	header := &plyHeader{}
	element := ""
	for {
		line, err := p.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "comment":
		case "format":
			if len(fields) < 2 || fields[1] != "binary_little_endian" {
				return nil, fmt.Errorf("ply: unsupported format: %v", fields[1:])
			}
		case "element":
			if len(fields) < 3 {
				return nil, fmt.Errorf("ply: bad element: %v", fields)
			}
			element = fields[1]
			if element == "vertex" {
				n, err := strconv.Atoi(fields[2])
				if err != nil {
					return nil, fmt.Errorf("ply: bad vertex count: %w", err)
				}
				if n < 0 || n > maxVertexCount {
					return nil, fmt.Errorf("ply: bad vertex count: %d", n)
				}
				header.count = n
			} else if n, _ := strconv.Atoi(fields[2]); n > 0 {
				return nil, fmt.Errorf("ply: unsupported element: %v", element)
			}
		case "property":
			if element != "vertex" {
				continue
			}
			if len(fields) < 3 || fields[1] != "float" {
				return nil, fmt.Errorf("ply: unsupported property: %v", fields[1:])
			}
			header.properties = append(header.properties, fields[2])
		case "end_header":
			return header, nil
		default:
			return nil, fmt.Errorf("ply: unexpected header line: %q", strings.TrimSpace(line))
		}
	}
}

// Parse reads a binary little-endian gaussian splat PLY stream.
func Parse(r io.Reader) (*Cloud, error) {
	p := &plyParser{r: bufio.NewReaderSize(r, 1<<16)}
	header, err := p.readHeader()
	if err != nil {
		return nil, err
	}

	// property name -> row position
	idx := map[string]int{}
	for i, name := range header.properties {
		if splatProperties[name] {
			idx[name] = i
		}
	}
	for _, name := range []string{"x", "y", "z"} {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("ply: missing property: %v", name)
		}
	}

	cloud := NewCloud(header.count)
	row := make([]float32, len(header.properties))
	at := func(name string, def float32) float32 {
		if i, ok := idx[name]; ok {
			return row[i]
		}
		return def
	}
	for i := 0; i < header.count; i++ {
		if err := binary.Read(p.r, binary.LittleEndian, row); err != nil {
			return nil, fmt.Errorf("ply: splat %d: %w", i, err)
		}
		s := &cloud.Splats[i]
		s.Position.X = row[idx["x"]]
		s.Position.Y = row[idx["y"]]
		s.Position.Z = row[idx["z"]]
		s.Color[0] = at("f_dc_0", 0)
		s.Color[1] = at("f_dc_1", 0)
		s.Color[2] = at("f_dc_2", 0)
		s.Opacity = at("opacity", 0)
		s.Scale.X = at("scale_0", 0)
		s.Scale.Y = at("scale_1", 0)
		s.Scale.Z = at("scale_2", 0)
		// rot_0 is the scalar part
		s.Rotation.W = at("rot_0", 1)
		s.Rotation.X = at("rot_1", 0)
		s.Rotation.Y = at("rot_2", 0)
		s.Rotation.Z = at("rot_3", 0)
	}
	return cloud, nil
}
