package gsplat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

var writerProperties = []string{
	"x", "y", "z",
	"nx", "ny", "nz",
	"f_dc_0", "f_dc_1", "f_dc_2",
	"opacity",
	"scale_0", "scale_1", "scale_2",
	"rot_0", "rot_1", "rot_2", "rot_3",
}

// Write serializes the cloud as a binary little-endian PLY with the
// property layout produced by gaussian splatting trainers. Normals are
// written as zeros.
func Write(cloud *Cloud, w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1<<16)

	fmt.Fprintln(bw, "ply")
	fmt.Fprintln(bw, "format binary_little_endian 1.0")
	fmt.Fprintf(bw, "element vertex %d\n", cloud.Count())
	for _, name := range writerProperties {
		fmt.Fprintf(bw, "property float %s\n", name)
	}
	fmt.Fprintln(bw, "end_header")

	row := make([]float32, len(writerProperties))
	for i := range cloud.Splats {
		s := &cloud.Splats[i]
		row[0], row[1], row[2] = s.Position.X, s.Position.Y, s.Position.Z
		row[3], row[4], row[5] = 0, 0, 0
		row[6], row[7], row[8] = s.Color[0], s.Color[1], s.Color[2]
		row[9] = s.Opacity
		row[10], row[11], row[12] = s.Scale.X, s.Scale.Y, s.Scale.Z
		row[13] = s.Rotation.W
		row[14], row[15], row[16] = s.Rotation.X, s.Rotation.Y, s.Rotation.Z
		if err := binary.Write(bw, binary.LittleEndian, row); err != nil {
			return fmt.Errorf("ply: splat %d: %w", i, err)
		}
	}
	return bw.Flush()
}
