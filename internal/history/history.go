// Package history remembers the vehicles a resident has booked for, each
// paired with the visitor's phone number, in a small YAML file.
package history

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

type Car struct {
	CarNo string `yaml:"carNo" json:"carNo"`
	Phone string `yaml:"phone" json:"phone"`
}

type file struct {
	Cars []Car `yaml:"cars"`
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Store is safe for concurrent use within one process.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load returns the remembered cars in insertion order. A missing file is an
// empty history.
func (s *Store) Load() ([]Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]Car, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	b = bytes.TrimPrefix(b, utf8BOM)
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", s.path, err)
	}
	return f.Cars, nil
}

// Remember adds carNo, or updates its phone if it is already known. The
// file is replaced atomically.
func (s *Store) Remember(carNo, phone string) error {
	carNo = strings.TrimSpace(carNo)
	phone = strings.TrimSpace(phone)
	if carNo == "" {
		return errors.New("history: vehicle number is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cars, err := s.load()
	if err != nil {
		return err
	}
	found := false
	for i := range cars {
		if cars[i].CarNo == carNo {
			if cars[i].Phone == phone {
				return nil
			}
			cars[i].Phone = phone
			found = true
			break
		}
	}
	if !found {
		cars = append(cars, Car{CarNo: carNo, Phone: phone})
	}
	return s.save(cars)
}

// Phone returns the phone remembered for carNo.
func (s *Store) Phone(carNo string) (string, bool, error) {
	cars, err := s.Load()
	if err != nil {
		return "", false, err
	}
	carNo = strings.TrimSpace(carNo)
	for _, c := range cars {
		if c.CarNo == carNo {
			return c.Phone, true, nil
		}
	}
	return "", false, nil
}

func (s *Store) save(cars []Car) error {
	out, err := yaml.Marshal(file{Cars: cars})
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := renameio.WriteFile(s.path, out, 0o600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
