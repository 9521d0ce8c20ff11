// Package deck manages the card decks a board can be played with. A deck is a
// directory of card images: one face per card id plus the shared back image.
package deck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

// BackImageName is the file name of the card back shown for hidden cells.
const BackImageName = "untouched.png"

// ErrNotFound is returned when a referenced deck is not installed.
var ErrNotFound = errors.New("deck not found")

// Resolver resolves a deck identifier to a playable deck. The board model
// depends on this interface only.
type Resolver interface {
	Resolve(name string) (*Deck, error)
}

// Deck is one installed, resolvable card deck.
type Deck struct {
	Name string
	dir  string
}

// CardImage returns the path of the face image for a card id.
func (d *Deck) CardImage(cardID int) string {
	return filepath.Join(d.dir, strconv.Itoa(cardID)+".png")
}

// BackImage returns the path of the shared card back image.
func (d *Deck) BackImage() string {
	return filepath.Join(d.dir, BackImageName)
}

// Store resolves decks from a directory on disk, one subdirectory per deck.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates a deck store rooted at dir.
func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Resolve returns the named deck, or ErrNotFound if its directory does not
// exist.
func (s *Store) Resolve(name string) (*Deck, error) {
	if name == "" {
		return nil, ErrNotFound
	}
	dir := filepath.Join(s.dir, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("deck %q: %w", name, ErrNotFound)
	}
	return &Deck{Name: name, dir: dir}, nil
}

// Installed lists the names of all installed decks, sorted.
func (s *Store) Installed() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read deck directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes an installed deck.
func (s *Store) Remove(name string) error {
	if _, err := s.Resolve(name); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("remove deck %q: %w", name, err)
	}
	s.logger.Info("deck removed", zap.String("deck", name))
	return nil
}
