package assets

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMeshData() *MeshData {
	return &MeshData{
		VertexStride: 12,
		VertexCount:  3,
		VertexBytes:  bytes.Repeat([]byte{0xAB}, 36),
		IndexFormat:  IndexFormatUint16,
		IndexCount:   3,
		IndexBytes:   []byte{0, 0, 1, 0, 2, 0},
		AABBMin:      [3]float32{-1, -1, 0},
		AABBMax:      [3]float32{1, 1, 0},
	}
}

func TestMeshRoundTrip(t *testing.T) {
	original := sampleMeshData()

	var buf bytes.Buffer
	require.NoError(t, EncodeMesh(&buf, original))

	decoded, err := DecodeMesh(&buf)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestMeshRoundTripUint32Indices(t *testing.T) {
	original := sampleMeshData()
	original.IndexFormat = IndexFormatUint32
	original.IndexBytes = []byte{0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0}

	var buf bytes.Buffer
	require.NoError(t, EncodeMesh(&buf, original))

	decoded, err := DecodeMesh(&buf)
	require.NoError(t, err)
	assert.Equal(t, IndexFormatUint32, decoded.IndexFormat)
	assert.Equal(t, original.IndexBytes, decoded.IndexBytes)
}

func TestDecodeMeshRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeMesh(&buf, sampleMeshData()))

	raw := buf.Bytes()
	raw[0] = 'X'

	_, err := DecodeMesh(bytes.NewReader(raw))
	assert.ErrorContains(t, err, "magic")
}

func TestDecodeMeshRejectsUnknownVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeMesh(&buf, sampleMeshData()))

	raw := buf.Bytes()
	raw[4] = 0xFF

	_, err := DecodeMesh(bytes.NewReader(raw))
	assert.ErrorContains(t, err, "version")
}

func TestDecodeMeshRejectsTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeMesh(&buf, sampleMeshData()))

	raw := buf.Bytes()
	_, err := DecodeMesh(bytes.NewReader(raw[:len(raw)-4]))
	assert.Error(t, err)
}

func TestDecodeMeshRejectsOversizedPayloads(t *testing.T) {
	// Stride and count chosen so their product wraps uint32 to zero; a
	// 32-bit size computation would decode this as an empty vertex payload.
	corrupt := func(mutate func(*meshHeader)) []byte {
		header := meshHeader{
			Magic:        meshMagic,
			Version:      meshVersion,
			VertexStride: 12,
			VertexCount:  3,
			IndexFormat:  uint32(IndexFormatUint16),
			IndexCount:   3,
		}
		mutate(&header)

		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &header))
		buf.Write([]byte{0, 0, 1, 0, 2, 0})
		return buf.Bytes()
	}

	_, err := DecodeMesh(bytes.NewReader(corrupt(func(h *meshHeader) {
		h.VertexStride = 1 << 16
		h.VertexCount = 1 << 16
	})))
	assert.ErrorContains(t, err, "vertex payload")

	_, err = DecodeMesh(bytes.NewReader(corrupt(func(h *meshHeader) {
		h.IndexFormat = uint32(IndexFormatUint32)
		h.IndexCount = 1 << 30
	})))
	assert.ErrorContains(t, err, "index payload")
}

func TestEncodeMeshValidatesPayloadSizes(t *testing.T) {
	data := sampleMeshData()
	data.VertexBytes = data.VertexBytes[:10]

	var buf bytes.Buffer
	assert.Error(t, EncodeMesh(&buf, data))
}

func TestIndexFormatByteWidth(t *testing.T) {
	assert.Equal(t, uint32(2), IndexFormatUint16.ByteWidth())
	assert.Equal(t, uint32(4), IndexFormatUint32.ByteWidth())
}
