package tile

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON writes the tiles as a single JSON array. The layout mirrors the
// in-memory structure: bounding rectangle, flat point pool and the three
// index lists.
func WriteJSON(w io.Writer, tiles []*Tile) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(tiles); err != nil {
		return fmt.Errorf("failed to encode tiles: %w", err)
	}
	return nil
}

// ReadJSON reads a tile array previously written by WriteJSON
func ReadJSON(r io.Reader) ([]*Tile, error) {
	var tiles []*Tile
	if err := json.NewDecoder(r).Decode(&tiles); err != nil {
		return nil, fmt.Errorf("failed to decode tiles: %w", err)
	}
	for i, t := range tiles {
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("tile %d: %w", i, err)
		}
	}
	return tiles, nil
}

// validate checks that all pool references are in range
func (t *Tile) validate() error {
	for _, s := range t.Areas {
		if s.Start < 0 || s.End > len(t.Points) || s.Start > s.End {
			return fmt.Errorf("area span [%d,%d) out of pool range %d", s.Start, s.End, len(t.Points))
		}
	}
	for _, s := range t.Ways {
		if s.Start < 0 || s.End > len(t.Points) || s.Start > s.End {
			return fmt.Errorf("way span [%d,%d) out of pool range %d", s.Start, s.End, len(t.Points))
		}
	}
	for _, n := range t.Nodes {
		if n.Index < 0 || n.Index >= len(t.Points) {
			return fmt.Errorf("node index %d out of pool range %d", n.Index, len(t.Points))
		}
	}
	return nil
}
