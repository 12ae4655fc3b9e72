// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package fits

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// WriteFile writes an in-memory FITS image to a file with the given
// filename, creating/overwriting it if necessary.
func (fits *Image) WriteFile(fileName string) error {
	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return fits.Write(f)
}

// Write writes an in-memory FITS image to an io.Writer: a minimal but
// standard-conformant header (dimensions, scaling, exposure, plus any
// accumulated history/provenance lines) followed by the big-endian float32
// payload.
func (fits *Image) Write(f io.Writer) error {
	sb := strings.Builder{}
	writeBool(&sb, "SIMPLE", true, "FITS standard 4.0")
	writeInt32(&sb, "BITPIX", -32, "32-bit floating point")
	writeInt32(&sb, "NAXIS", int32(len(fits.Naxisn)), "Number of axes")
	for i := 0; i < len(fits.Naxisn); i++ {
		writeInt32(&sb, fmt.Sprintf("NAXIS%d", i+1), fits.Naxisn[i], "Axis size")
	}
	writeFloat32(&sb, "BZERO", fits.Bzero, "Zero offset")
	if fits.Exposure != 0 {
		writeFloat32(&sb, "EXPOSURE", fits.Exposure, "[s] Exposure time")
	}
	for _, h := range fits.Header.History {
		writeHistory(&sb, h)
	}
	writeEnd(&sb)

	bytesInHeaderBlock := sb.Len() % fitsBlockSize
	if bytesInHeaderBlock > 0 {
		for i := bytesInHeaderBlock; i < fitsBlockSize; i++ {
			sb.WriteRune(' ')
		}
	}

	if _, err := f.Write([]byte(sb.String())); err != nil {
		return err
	}
	// NaN marks undefined pixels in every output image and must survive
	// the round trip; FITS floating-point data admits IEEE NaN directly.
	return writeFloat32Array(f, fits.Data, false)
}

// AddHistory appends a HISTORY header line recording a pipeline step and
// its parameters, so every output file carries the provenance of the run
// that produced it.
func (h *Header) AddHistory(line string) {
	h.History = append(h.History, line)
}

func writeBool(w io.Writer, key string, value bool, comment string) {
	if len(key) > 8 {
		key = key[0:8]
	}
	if len(comment) > 47 {
		comment = comment[0:47]
	}
	v := "F"
	if value {
		v = "T"
	}
	fmt.Fprintf(w, "%-8s= %20s / %-47s", key, v, comment)
}

func writeInt32(w io.Writer, key string, value int32, comment string) {
	if len(key) > 8 {
		key = key[0:8]
	}
	if len(comment) > 47 {
		comment = comment[0:47]
	}
	fmt.Fprintf(w, "%-8s= %20d / %-47s", key, value, comment)
}

func writeFloat32(w io.Writer, key string, value float32, comment string) {
	if len(key) > 8 {
		key = key[0:8]
	}
	if len(comment) > 47 {
		comment = comment[0:47]
	}
	fmt.Fprintf(w, "%-8s= %20g / %-47s", key, value, comment)
}

func writeString(w io.Writer, key, value, comment string) {
	if len(key) > 8 {
		key = key[0:8]
	}
	if len(comment) > 47 {
		comment = comment[0:47]
	}
	value = strings.Join(strings.Split(value, "'"), "''")
	if len(value) <= 18 {
		fmt.Fprintf(w, "%-8s= '%s'%s / %-47s", key, value, strings.Repeat(" ", 18-len(value)), comment)
	} else {
		fmt.Fprintf(w, "%-8s= '%s&' / %-47s", key, value[0:17], comment)
		value = value[17:]
		for len(value) > 66 {
			fmt.Fprintf(w, "CONTINUE  '%s&' ", value[0:66])
			value = value[66:]
		}
		fmt.Fprintf(w, "CONTINUE  '%s'%s", value, strings.Repeat(" ", 50+(18-len(value))))
	}
}

func writeHistory(w io.Writer, line string) {
	if len(line) > 71 {
		line = line[0:71]
	}
	fmt.Fprintf(w, "HISTORY %-72s", line)
}

func writeEnd(w io.Writer) {
	fmt.Fprintf(w, "END%s", strings.Repeat(" ", HeaderLineSize-3))
}

// writeFloat32Array writes FITS binary body data in network byte order,
// optionally replacing NaNs with zeros for compatibility with other
// software (masked-out pixels surface as NaN throughout this module's
// pipeline, but FITS viewers generally expect a numeric blank).
func writeFloat32Array(w io.Writer, data []float32, replaceNaNs bool) error {
	buf := make([]byte, bufLen)

	for block := 0; block < len(data); block += bufLen >> 2 {
		size := len(data) - block
		if size > (bufLen >> 2) {
			size = bufLen >> 2
		}
		for offset := 0; offset < size; offset++ {
			d := data[block+offset]
			if replaceNaNs && math.IsNaN(float64(d)) {
				d = 0
			}
			val := math.Float32bits(d)
			buf[(offset<<2)+0] = byte(val >> 24)
			buf[(offset<<2)+1] = byte(val >> 16)
			buf[(offset<<2)+2] = byte(val >> 8)
			buf[(offset<<2)+3] = byte(val)
		}
		if _, err := w.Write(buf[:(size << 2)]); err != nil {
			return err
		}
	}

	total := len(data) * 4
	if rem := total % fitsBlockSize; rem > 0 {
		pad := make([]byte, fitsBlockSize-rem)
		if _, err := w.Write(pad); err != nil {
			return err
		}
	}
	return nil
}
