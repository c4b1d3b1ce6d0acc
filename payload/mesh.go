package payload

import "encoding/binary"

// MeshVtx maps a source UV onto a rectified UV.
type MeshVtx struct {
	U1, V1, U2, V2 float32
}

// RectifyMesh describes the distortion-rectification geometry announced on
// the mesh topic before the first video frame. It travels as three message
// segments: descriptor, vertices, indices.
type RectifyMesh struct {
	MeshID     uint32
	InputResX  uint32
	InputResY  uint32
	OutputResX uint32
	OutputResY uint32
	Vertices   []MeshVtx
	Indices    []uint16
}

// EncodeSegments packs the mesh into its three wire segments.
func (m *RectifyMesh) EncodeSegments() [3][]byte {
	desc := appendU32(nil, m.MeshID)
	desc = appendU32(desc, m.InputResX)
	desc = appendU32(desc, m.InputResY)
	desc = appendU32(desc, m.OutputResX)
	desc = appendU32(desc, m.OutputResY)
	desc = appendU32(desc, uint32(len(m.Vertices)))
	desc = appendU32(desc, uint32(len(m.Indices)))
	desc = pad8(desc)

	var verts []byte
	for _, v := range m.Vertices {
		verts = appendF32(verts, v.U1)
		verts = appendF32(verts, v.V1)
		verts = appendF32(verts, v.U2)
		verts = appendF32(verts, v.V2)
	}
	verts = pad8(verts)

	var idx []byte
	for _, i := range m.Indices {
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], i)
		idx = append(idx, tmp[:]...)
	}
	idx = pad8(idx)

	return [3][]byte{desc, verts, idx}
}

// UnitQuadMesh is the identity rectification covering the full frame.
func UnitQuadMesh(inW, inH, outW, outH uint32) RectifyMesh {
	return RectifyMesh{
		MeshID:     MeshFoveated,
		InputResX:  inW,
		InputResY:  inH,
		OutputResX: outW,
		OutputResY: outH,
		Vertices: []MeshVtx{
			{0, 0, 0, 0},
			{1, 0, 1, 0},
			{0, 1, 0, 1},
			{1, 1, 1, 1},
		},
		Indices: []uint16{0, 1, 2, 2, 1, 3},
	}
}
