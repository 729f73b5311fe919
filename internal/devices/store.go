// Package devices persists the viewer's saved hosts in a TOML file.
package devices

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Limit is the maximum number of saved devices.
const Limit = 5

var (
	ErrLimit    = fmt.Errorf("devices: limit of %d devices reached", Limit)
	ErrNotFound = errors.New("devices: no such device")
	ErrInvalid  = errors.New("devices: address is required")
)

// Device is a saved host.
type Device struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
	IP   string `toml:"ip"`
}

type file struct {
	Devices []Device `toml:"devices"`
}

// Store is a device list backed by a TOML file. Every mutation is written
// through before it returns.
type Store struct {
	path string

	mu      sync.Mutex
	devices []Device
}

// DefaultPath is devices.toml in the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "devices.toml"
	}
	return filepath.Join(dir, "remotepc", "devices.toml")
}

// Open loads path. A missing file is an empty list.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	var raw file
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load devices: %w", err)
		}
	}
	s.devices = raw.Devices
	return s, nil
}

// Path is the backing file.
func (s *Store) Path() string { return s.path }

// List returns a copy of the saved devices in insertion order.
func (s *Store) List() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Device(nil), s.devices...)
}

// Add saves a device. An empty name defaults to the address.
func (s *Store) Add(name, ip string) (Device, error) {
	ip = strings.TrimSpace(ip)
	name = strings.TrimSpace(name)
	if ip == "" {
		return Device{}, ErrInvalid
	}
	if name == "" {
		name = ip
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.devices) >= Limit {
		return Device{}, ErrLimit
	}
	d := Device{ID: uuid.NewString(), Name: name, IP: ip}
	next := append(append([]Device(nil), s.devices...), d)
	if err := s.saveLocked(next); err != nil {
		return Device{}, err
	}
	s.devices = next
	return d, nil
}

// Rename changes the display name of device id.
func (s *Store) Rename(id, name string) (Device, error) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Device{}, ErrNotFound
	}
	next := append([]Device(nil), s.devices...)
	if name == "" {
		name = next[i].IP
	}
	next[i].Name = name
	if err := s.saveLocked(next); err != nil {
		return Device{}, err
	}
	s.devices = next
	return next[i], nil
}

// Delete removes device id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	next := make([]Device, 0, len(s.devices)-1)
	next = append(next, s.devices[:i]...)
	next = append(next, s.devices[i+1:]...)
	if err := s.saveLocked(next); err != nil {
		return err
	}
	s.devices = next
	return nil
}

// Find looks a device up by ID, then by case-insensitive name.
func (s *Store) Find(key string) (Device, error) {
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(key); i >= 0 {
		return s.devices[i], nil
	}
	for _, d := range s.devices {
		if strings.EqualFold(d.Name, key) {
			return d, nil
		}
	}
	return Device{}, ErrNotFound
}

func (s *Store) indexLocked(id string) int {
	for i, d := range s.devices {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// saveLocked writes list to a temp file and renames it over the store.
func (s *Store) saveLocked(list []Device) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save devices: %w", err)
		}
	}
	buf := strings.Builder{}
	if err := toml.NewEncoder(&buf).Encode(file{Devices: list}); err != nil {
		return fmt.Errorf("encode devices: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("save devices: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("save devices: %w", err)
	}
	return nil
}
