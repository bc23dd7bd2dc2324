// Package voxel converts atom sets into fixed-resolution occupancy grids.
//
// Responsibilities: bounding-box computation, grid allocation, binary
// rasterization with one channel per alphabet element, and occupancy
// statistics. Key types: Atom, Alphabet, Box, Grid.
//
// The transform is pure: no I/O and no shared state across calls. Each call
// operates on its own grid buffer, so voxelizing many structures in parallel
// needs no coordination. Persistence and transport live in internal/griddb
// and internal/api.
package voxel
