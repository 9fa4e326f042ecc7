package assets

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Cooked mesh container: a fixed little-endian header followed by raw
// vertex bytes and raw index bytes.
var meshMagic = [4]byte{'V', 'M', 'S', 'H'}

const meshVersion uint32 = 1

// Upper bound for either payload section. Cooked meshes are far smaller in
// practice; anything above this is a corrupt or hostile header.
const maxMeshPayloadBytes uint64 = 512 << 20

// IndexFormat selects the width of the index data.
type IndexFormat uint32

const (
	IndexFormatUint16 IndexFormat = 0
	IndexFormatUint32 IndexFormat = 1
)

// ByteWidth returns the size of a single index in bytes.
func (f IndexFormat) ByteWidth() uint32 {
	if f == IndexFormatUint32 {
		return 4
	}
	return 2
}

// MeshData is the decoded CPU-side form of a cooked mesh, ready for upload.
type MeshData struct {
	VertexStride uint32
	VertexCount  uint32
	VertexBytes  []byte

	IndexFormat IndexFormat
	IndexCount  uint32
	IndexBytes  []byte

	AABBMin [3]float32
	AABBMax [3]float32
}

type meshHeader struct {
	Magic        [4]byte
	Version      uint32
	VertexStride uint32
	VertexCount  uint32
	IndexFormat  uint32
	IndexCount   uint32
	AABBMin      [3]float32
	AABBMax      [3]float32
}

// DecodeMesh reads a cooked mesh from r, validating the header and payload
// sizes.
func DecodeMesh(r io.Reader) (*MeshData, error) {
	var header meshHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read mesh header: %w", err)
	}
	if header.Magic != meshMagic {
		return nil, fmt.Errorf("bad mesh magic %q", header.Magic[:])
	}
	if header.Version != meshVersion {
		return nil, fmt.Errorf("unsupported mesh version %d", header.Version)
	}
	format := IndexFormat(header.IndexFormat)
	if format != IndexFormatUint16 && format != IndexFormatUint32 {
		return nil, fmt.Errorf("unknown index format %d", header.IndexFormat)
	}
	if header.VertexStride == 0 || header.VertexCount == 0 {
		return nil, fmt.Errorf("mesh has no vertex data (stride %d, count %d)", header.VertexStride, header.VertexCount)
	}

	// Sizes are computed in uint64 so a header whose product wraps uint32
	// cannot decode as an empty payload.
	vertexSize := uint64(header.VertexStride) * uint64(header.VertexCount)
	indexSize := uint64(format.ByteWidth()) * uint64(header.IndexCount)
	if vertexSize > maxMeshPayloadBytes {
		return nil, fmt.Errorf("vertex payload size %d exceeds limit (stride %d, count %d)",
			vertexSize, header.VertexStride, header.VertexCount)
	}
	if indexSize > maxMeshPayloadBytes {
		return nil, fmt.Errorf("index payload size %d exceeds limit (count %d)", indexSize, header.IndexCount)
	}

	data := &MeshData{
		VertexStride: header.VertexStride,
		VertexCount:  header.VertexCount,
		IndexFormat:  format,
		IndexCount:   header.IndexCount,
		AABBMin:      header.AABBMin,
		AABBMax:      header.AABBMax,
	}

	data.VertexBytes = make([]byte, vertexSize)
	if _, err := io.ReadFull(r, data.VertexBytes); err != nil {
		return nil, fmt.Errorf("truncated vertex data: %w", err)
	}
	data.IndexBytes = make([]byte, indexSize)
	if _, err := io.ReadFull(r, data.IndexBytes); err != nil {
		return nil, fmt.Errorf("truncated index data: %w", err)
	}

	return data, nil
}

// DecodeMeshFile decodes a cooked mesh from disk.
func DecodeMeshFile(path string) (*MeshData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open mesh file %s: %w", path, err)
	}
	defer file.Close()
	return DecodeMesh(file)
}

// EncodeMesh writes data in the cooked mesh container format. Used by
// offline cooking tools and tests.
func EncodeMesh(w io.Writer, data *MeshData) error {
	if uint64(len(data.VertexBytes)) != uint64(data.VertexStride)*uint64(data.VertexCount) {
		return fmt.Errorf("vertex byte count %d does not match stride %d x count %d",
			len(data.VertexBytes), data.VertexStride, data.VertexCount)
	}
	if uint64(len(data.IndexBytes)) != uint64(data.IndexFormat.ByteWidth())*uint64(data.IndexCount) {
		return fmt.Errorf("index byte count %d does not match format width %d x count %d",
			len(data.IndexBytes), data.IndexFormat.ByteWidth(), data.IndexCount)
	}

	header := meshHeader{
		Magic:        meshMagic,
		Version:      meshVersion,
		VertexStride: data.VertexStride,
		VertexCount:  data.VertexCount,
		IndexFormat:  uint32(data.IndexFormat),
		IndexCount:   data.IndexCount,
		AABBMin:      data.AABBMin,
		AABBMax:      data.AABBMax,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &header); err != nil {
		return err
	}
	buf.Write(data.VertexBytes)
	buf.Write(data.IndexBytes)

	_, err := w.Write(buf.Bytes())
	return err
}
