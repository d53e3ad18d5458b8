// Package persist implements the EVCX binary context format, a JSON
// mirror of the context store, and a CSV exporter, plus pluggable Store
// backends (memory / sqlite). The temporal store has no JSON or binary
// serializer here.
package persist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"evocore/internal/ctxstore"
	"evocore/internal/ecerr"
	"evocore/internal/wstat"
)

// BinaryMagic is the 4-byte ASCII magic identifying an EVCX context file.
var BinaryMagic = [4]byte{'E', 'V', 'C', 'X'}

// BinaryVersion is the current EVCX format version.
const BinaryVersion uint32 = 1

// Byte-order convention: 32/64-bit integer fields use network byte order
// (big-endian); f64 fields use IEEE-754 little-endian, documented here
// since no single convention covers both without an explicit pin.
var intOrder = binary.BigEndian
var floatOrder = binary.LittleEndian

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	intOrder.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return intOrder.Uint32(buf[:]), nil
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	intOrder.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return intOrder.Uint64(buf[:]), nil
}

func writeF64(w io.Writer, v float64) error {
	var buf [8]byte
	floatOrder.PutUint64(buf[:], math.Float64bits(v))
	_, err := w.Write(buf[:])
	return err
}

func readF64(r io.Reader) (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(floatOrder.Uint64(buf[:])), nil
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// SaveBinary writes the store's dimensions and all context entries to w in
// the EVCX v1 format.
func SaveBinary(w io.Writer, store *ctxstore.Store) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(BinaryMagic[:]); err != nil {
		return fmt.Errorf("%w: %v", ecerr.ErrIO, err)
	}
	if err := writeU32(bw, BinaryVersion); err != nil {
		return fmt.Errorf("%w: %v", ecerr.ErrIO, err)
	}

	dims := store.Dimensions()
	if err := writeU32(bw, uint32(len(dims))); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(store.ParamCount())); err != nil {
		return err
	}
	for _, d := range dims {
		if err := writeString(bw, d.Name); err != nil {
			return err
		}
		if err := writeU32(bw, uint32(len(d.Values))); err != nil {
			return err
		}
		for _, v := range d.Values {
			if err := writeString(bw, v); err != nil {
				return err
			}
		}
	}

	keys := store.Keys()
	if err := writeU32(bw, uint32(len(keys))); err != nil {
		return err
	}
	for _, key := range keys {
		entry, ok := store.GetByKey(key)
		if !ok {
			continue
		}
		if err := writeString(bw, entry.Key); err != nil {
			return err
		}
		if err := writeU32(bw, uint32(entry.Params.Len())); err != nil {
			return err
		}
		if err := writeU32(bw, uint32(entry.TotalExperiences)); err != nil {
			return err
		}
		if err := writeF64(bw, entry.Confidence); err != nil {
			return err
		}
		if err := writeF64(bw, entry.AvgFitness); err != nil {
			return err
		}
		if err := writeF64(bw, entry.BestFitness); err != nil {
			return err
		}
		if err := writeU64(bw, uint64(entry.FirstUpdate.UnixNano())); err != nil {
			return err
		}
		if err := writeU64(bw, uint64(entry.LastUpdate.UnixNano())); err != nil {
			return err
		}
		for i := 0; i < entry.Params.Len(); i++ {
			stat := entry.Params.At(i)
			if err := writeF64(bw, stat.Mean); err != nil {
				return err
			}
			if err := writeF64(bw, stat.Variance); err != nil {
				return err
			}
			if err := writeF64(bw, stat.SumWeights); err != nil {
				return err
			}
			if err := writeU32(bw, uint32(stat.Count)); err != nil {
				return err
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ecerr.ErrIO, err)
	}
	return nil
}

// LoadBinary reads an EVCX v1 payload from r and reconstructs a Store. It
// rejects mismatched magic or version with ErrFormat.
func LoadBinary(r io.Reader) (*ctxstore.Store, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: reading magic: %v", ecerr.ErrIO, err)
	}
	if magic != BinaryMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ecerr.ErrFormat, magic)
	}
	version, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ecerr.ErrIO, err)
	}
	if version != BinaryVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ecerr.ErrFormat, version)
	}

	dimCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	paramCount, err := readU32(r)
	if err != nil {
		return nil, err
	}

	dims := make([]ctxstore.Dimension, dimCount)
	for i := range dims {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		valueCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		values := make([]string, valueCount)
		for j := range values {
			v, err := readString(r)
			if err != nil {
				return nil, err
			}
			values[j] = v
		}
		dims[i] = ctxstore.Dimension{Name: name, Values: values}
	}

	store, err := ctxstore.New(dims, int(paramCount))
	if err != nil {
		return nil, err
	}

	totalContexts, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < totalContexts; i++ {
		key, err := readString(r)
		if err != nil {
			return nil, err
		}
		pCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		experiences, err := readU32(r)
		if err != nil {
			return nil, err
		}
		confidence, err := readF64(r)
		if err != nil {
			return nil, err
		}
		avgFitness, err := readF64(r)
		if err != nil {
			return nil, err
		}
		bestFitness, err := readF64(r)
		if err != nil {
			return nil, err
		}
		firstNano, err := readU64(r)
		if err != nil {
			return nil, err
		}
		lastNano, err := readU64(r)
		if err != nil {
			return nil, err
		}

		params := wstat.NewArray(int(pCount))
		for j := 0; j < int(pCount); j++ {
			mean, err := readF64(r)
			if err != nil {
				return nil, err
			}
			variance, err := readF64(r)
			if err != nil {
				return nil, err
			}
			sumWeights, err := readF64(r)
			if err != nil {
				return nil, err
			}
			count, err := readU32(r)
			if err != nil {
				return nil, err
			}
			params.SetAt(j, wstat.FromComponents(mean, variance, sumWeights, int(count)))
		}

		store.Restore(ctxstore.Stats{
			Key:              key,
			Params:           params,
			Confidence:       confidence,
			FirstUpdate:      time.Unix(0, int64(firstNano)),
			LastUpdate:       time.Unix(0, int64(lastNano)),
			TotalExperiences: int(experiences),
			AvgFitness:       avgFitness,
			BestFitness:      bestFitness,
		})
	}

	return store, nil
}
