// Package audio stores synthesized narration clips on disk and maps between
// their public addresses and filesystem paths.
//
// A clip address is the stable relative URL handed to clients, always of the
// form /static/audio/<name>.mp3 (voice samples live one level deeper under
// samples/). Files are content-addressed with random unique names, written
// once, and never renamed: an address stays valid until the clip is released
// by the reference-counted deletion path.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// AddressPrefix is the URL prefix every clip address carries. Remove refuses
// anything else so arbitrary paths can never be deleted through this package.
const AddressPrefix = "/static/"

// Store writes and removes clip files under a static file root.
type Store struct {
	staticDir string
}

// NewStore returns a clip store rooted at staticDir. The audio directories
// are created on first write, not here, so a read-only consumer can hold a
// Store without filesystem side effects.
func NewStore(staticDir string) (*Store, error) {
	if strings.TrimSpace(staticDir) == "" {
		return nil, errors.New("static dir is required")
	}
	absolute, err := filepath.Abs(staticDir)
	if err != nil {
		return nil, fmt.Errorf("resolve static dir: %w", err)
	}
	return &Store{staticDir: absolute}, nil
}

// StaticDir returns the filesystem root backing /static/ addresses.
func (s *Store) StaticDir() string {
	return s.staticDir
}

// Write persists one clip under a fresh unique name and returns its address.
func (s *Store) Write(data []byte) (string, error) {
	name := uuid.NewString() + ".mp3"
	return s.writeFile(filepath.Join("audio", name), data)
}

// WriteSample persists a voice preview clip named after the voice so repeat
// synthesis overwrites rather than accumulates.
func (s *Store) WriteSample(voiceID string, data []byte) (string, error) {
	if strings.TrimSpace(voiceID) == "" {
		return "", errors.New("voice id is required")
	}
	return s.writeFile(filepath.Join("audio", "samples", voiceID+".mp3"), data)
}

// SampleAddress returns the address a voice's sample clip would have.
func (s *Store) SampleAddress(voiceID string) string {
	return AddressPrefix + "audio/samples/" + voiceID + ".mp3"
}

func (s *Store) writeFile(relative string, data []byte) (string, error) {
	target := filepath.Join(s.staticDir, relative)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create audio directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}
	return AddressPrefix + filepath.ToSlash(relative), nil
}

// Resolve maps a clip address back to its filesystem path. Addresses that do
// not carry the /static/ prefix or that escape the static root are rejected.
func (s *Store) Resolve(address string) (string, error) {
	if !strings.HasPrefix(address, AddressPrefix) {
		return "", fmt.Errorf("address %q is not under %s", address, AddressPrefix)
	}
	relative := strings.TrimPrefix(address, AddressPrefix)
	target := filepath.Join(s.staticDir, filepath.FromSlash(relative))

	cleaned := filepath.Clean(target)
	if cleaned != s.staticDir && !strings.HasPrefix(cleaned, s.staticDir+string(filepath.Separator)) {
		return "", fmt.Errorf("address %q escapes the static root", address)
	}
	return cleaned, nil
}

// Exists reports whether the clip file backing an address is present.
func (s *Store) Exists(address string) bool {
	path, err := s.Resolve(address)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Remove deletes the file backing a clip address. A missing file is not an
// error; the release path may run again after a crash left the row deleted.
func (s *Store) Remove(address string) error {
	path, err := s.Resolve(address)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove clip: %w", err)
	}
	return nil
}

// RemoveAll deletes every address in the list, collecting errors rather than
// stopping at the first. Used by the assembly rollback path, where every
// collected clip must be attempted.
func (s *Store) RemoveAll(addresses []string) error {
	var errs []error
	for _, address := range addresses {
		if err := s.Remove(address); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
