package fec

import "github.com/duskline/rpcore/internal/errs"

// Encoder produces parity shards for a fixed group of data shards.
type Encoder struct {
	dataShards   int
	parityShards int
}

// NewEncoder returns an Encoder for k data shards and m parity shards.
func NewEncoder(dataShards, parityShards int) *Encoder {
	return &Encoder{dataShards: dataShards, parityShards: parityShards}
}

// Encode computes m parity shards from k equally-sized data shards.
func (e *Encoder) Encode(data [][]byte) ([][]byte, error) {
	if len(data) != e.dataShards {
		return nil, errs.New(errs.InvalidData, "fec.encode", nil)
	}
	shardLen := len(data[0])
	for _, d := range data {
		if len(d) != shardLen {
			return nil, errs.New(errs.InvalidData, "fec.encode", nil)
		}
	}

	parity := make([][]byte, e.parityShards)
	for p := 0; p < e.parityShards; p++ {
		row := vandermondeRow(byte(p+1), e.dataShards)
		out := make([]byte, shardLen)
		for i, coeff := range row {
			if coeff == 0 {
				continue
			}
			for j := 0; j < shardLen; j++ {
				out[j] ^= gfMul(coeff, data[i][j])
			}
		}
		parity[p] = out
	}
	return parity, nil
}

// Decoder reconstructs missing data shards from any k surviving shards
// (data or parity) within one FEC group.
type Decoder struct {
	dataShards   int
	parityShards int
}

// NewDecoder returns a Decoder matching an Encoder's shard counts.
func NewDecoder(dataShards, parityShards int) *Decoder {
	return &Decoder{dataShards: dataShards, parityShards: parityShards}
}

// Shard is one received unit of a FEC group, tagged with its index in
// [0, dataShards+parityShards).
type Shard struct {
	Index int
	Data  []byte
}

// Reconstruct recovers the full set of k data shards given any k
// shards (data or parity) from the group. Returns InvalidData if fewer
// than k shards are present.
func (d *Decoder) Reconstruct(shards []Shard) ([][]byte, error) {
	k := d.dataShards
	if len(shards) < k {
		return nil, errs.New(errs.InvalidData, "fec.reconstruct", nil)
	}
	shardLen := len(shards[0].Data)

	// Build the k x k coefficient matrix for the chosen k shards against
	// the k unknowns (data shards 0..k-1, in order): row i is the unit
	// vector e_{s.Index} if shard i is a surviving data shard, or the
	// Vandermonde row for parity shard (index - dataShards) otherwise.
	chosen := shards[:k]
	coeffs := make(matrix, k)
	for i, s := range chosen {
		if s.Index < d.dataShards {
			row := make([]byte, k)
			row[s.Index] = 1
			coeffs[i] = row
		} else {
			coeffs[i] = vandermondeRow(byte(s.Index-d.dataShards+1), d.dataShards)
		}
	}

	inv, ok := coeffs.invert()
	if !ok {
		return nil, errs.New(errs.InvalidData, "fec.reconstruct", nil)
	}

	recovered := make([][]byte, d.dataShards)
	for out := 0; out < d.dataShards; out++ {
		buf := make([]byte, shardLen)
		for i, s := range chosen {
			coeff := inv[out][i]
			if coeff == 0 {
				continue
			}
			for j := 0; j < shardLen; j++ {
				buf[j] ^= gfMul(coeff, s.Data[j])
			}
		}
		recovered[out] = buf
	}
	return recovered, nil
}
