// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import glm "github.com/go-gl/mathgl/mgl32"

// Cube returns a unit cube centered at the origin, with per-face
// normals and texture coordinates covering each face once.
func Cube() ([]Vertex, []uint32) {
	faces := []struct {
		normal, u, v glm.Vec3
	}{
		{glm.Vec3{0, 0, 1}, glm.Vec3{1, 0, 0}, glm.Vec3{0, 1, 0}},
		{glm.Vec3{0, 0, -1}, glm.Vec3{-1, 0, 0}, glm.Vec3{0, 1, 0}},
		{glm.Vec3{1, 0, 0}, glm.Vec3{0, 0, -1}, glm.Vec3{0, 1, 0}},
		{glm.Vec3{-1, 0, 0}, glm.Vec3{0, 0, 1}, glm.Vec3{0, 1, 0}},
		{glm.Vec3{0, 1, 0}, glm.Vec3{1, 0, 0}, glm.Vec3{0, 0, -1}},
		{glm.Vec3{0, -1, 0}, glm.Vec3{1, 0, 0}, glm.Vec3{0, 0, 1}},
	}

	var (
		vertices []Vertex
		indices  []uint32
	)
	corners := []glm.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for _, f := range faces {
		base := uint32(len(vertices))
		for _, uv := range corners {
			pos := f.normal.Mul(0.5).
				Add(f.u.Mul(uv.X() - 0.5)).
				Add(f.v.Mul(uv.Y() - 0.5))
			vertices = append(vertices, Vertex{
				Pos:      pos,
				Normal:   f.normal,
				TexCoord: glm.Vec2{uv.X(), 1 - uv.Y()},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}
