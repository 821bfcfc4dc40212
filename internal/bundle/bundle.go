// Package bundle exports the whole journal to a portable .kiln archive and
// imports it back. An archive is a gzip'd tar of YAML documents.
package bundle

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/kiln/internal/anchor"
	"github.com/kokistudios/kiln/internal/room"
	"github.com/kokistudios/kiln/internal/session"
	"github.com/kokistudios/kiln/internal/store"
)

// FormatVersion is written to every manifest.
const FormatVersion = "1"

const (
	manifestFile = "manifest.yaml"
	roomsFile    = "rooms.yaml"
	anchorsFile  = "anchors.yaml"
	sessionsDir  = "sessions/"
)

// Manifest describes the contents of a .kiln bundle.
type Manifest struct {
	Version    string    `yaml:"version"`
	ExportedAt time.Time `yaml:"exported_at"`
	Sessions   int       `yaml:"sessions"`
	Rooms      int       `yaml:"rooms"`
	Edges      int       `yaml:"edges"`
	Anchors    int       `yaml:"anchors"`
}

// roomsDoc holds the room graph: nodes and normalized edges.
type roomsDoc struct {
	Rooms []*room.Room `yaml:"rooms"`
	Edges []room.Edge  `yaml:"edges"`
}

type anchorsDoc struct {
	Anchors []anchor.CustomAnchor `yaml:"anchors"`
}

// Export writes every session, room, edge and custom anchor to outputPath.
// A directory gets a dated default filename; a missing .kiln suffix is added.
func Export(ctx context.Context, st *store.Store, outputPath string) (string, *Manifest, error) {
	sessions, err := session.List(ctx, st, session.Filter{})
	if err != nil {
		return "", nil, err
	}
	rooms, err := room.List(ctx, st)
	if err != nil {
		return "", nil, err
	}
	edges, err := room.ListEdges(ctx, st)
	if err != nil {
		return "", nil, err
	}
	anchors, err := anchor.ListCustom(ctx, st)
	if err != nil {
		return "", nil, err
	}

	defaultName := fmt.Sprintf("kiln-%s.kiln", time.Now().UTC().Format("20060102"))
	if outputPath == "" {
		outputPath = defaultName
	}
	if info, err := os.Stat(outputPath); err == nil && info.IsDir() {
		outputPath = filepath.Join(outputPath, defaultName)
	} else if !strings.HasSuffix(outputPath, ".kiln") {
		outputPath += ".kiln"
	}

	manifest := &Manifest{
		Version:    FormatVersion,
		ExportedAt: time.Now().UTC(),
		Sessions:   len(sessions),
		Rooms:      len(rooms),
		Edges:      len(edges),
		Anchors:    len(anchors),
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)

	write := func(name string, v any) error {
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", name, err)
		}
		header := &tar.Header{
			Name:    name,
			Size:    int64(len(data)),
			Mode:    0644,
			ModTime: manifest.ExportedAt,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		return nil
	}

	if err := write(manifestFile, manifest); err != nil {
		return "", nil, err
	}
	for i := range sessions {
		if err := write(sessionsDir+sessions[i].ID+".yaml", &sessions[i]); err != nil {
			return "", nil, err
		}
	}
	if err := write(roomsFile, roomsDoc{Rooms: rooms, Edges: edges}); err != nil {
		return "", nil, err
	}
	if err := write(anchorsFile, anchorsDoc{Anchors: anchors}); err != nil {
		return "", nil, err
	}

	if err := tw.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to finish tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to finish gzip: %w", err)
	}
	return outputPath, manifest, nil
}

// ImportResult counts what an import added and what it left alone because
// the same ID already existed.
type ImportResult struct {
	Manifest        Manifest
	SessionsAdded   int
	SessionsSkipped int
	RoomsAdded      int
	RoomsSkipped    int
	EdgesAdded      int
	AnchorsAdded    int
	AnchorsSkipped  int
}

// contents is a fully parsed bundle.
type contents struct {
	manifest Manifest
	sessions []*session.Session
	rooms    roomsDoc
	anchors  anchorsDoc
}

// Import reads a .kiln bundle into the store. Existing IDs are never
// overwritten. A room whose origin session is absent keeps a nil origin.
func Import(ctx context.Context, st *store.Store, bundlePath string) (*ImportResult, error) {
	c, err := read(bundlePath)
	if err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	if err := c.checkEdges(ctx, st); err != nil {
		return nil, err
	}

	res := &ImportResult{Manifest: c.manifest}

	for _, sess := range c.sessions {
		if _, err := session.Get(ctx, st, sess.ID); err == nil {
			res.SessionsSkipped++
			continue
		} else if !errors.Is(err, session.ErrNotFound) {
			return res, err
		}
		if err := session.Save(ctx, st, sess); err != nil {
			return res, fmt.Errorf("import session %s: %w", sess.ID, err)
		}
		res.SessionsAdded++
	}

	for _, r := range c.rooms.Rooms {
		if _, err := room.Get(ctx, st, r.ID); err == nil {
			res.RoomsSkipped++
			continue
		} else if !errors.Is(err, room.ErrUnknownRoom) {
			return res, err
		}
		if origin := r.Origin(); origin != "" {
			if _, err := session.Get(ctx, st, origin); errors.Is(err, session.ErrNotFound) {
				r.OriginSessionID = nil
			} else if err != nil {
				return res, err
			}
		}
		if err := room.Save(ctx, st, r); err != nil {
			return res, fmt.Errorf("import room %s: %w", r.Name, err)
		}
		res.RoomsAdded++
	}

	existing, err := room.ListEdges(ctx, st)
	if err != nil {
		return res, err
	}
	have := make(map[room.Edge]bool, len(existing))
	for _, e := range existing {
		have[e] = true
	}
	for _, e := range c.rooms.Edges {
		e = room.NewEdge(e.A, e.B)
		if have[e] {
			continue
		}
		if err := room.Link(ctx, st, e.A, e.B); err != nil {
			return res, fmt.Errorf("import edge %s <-> %s: %w", e.A, e.B, err)
		}
		have[e] = true
		res.EdgesAdded++
	}

	for i := range c.anchors.Anchors {
		a := &c.anchors.Anchors[i]
		if _, err := anchor.GetCustom(ctx, st, a.ID); err == nil {
			res.AnchorsSkipped++
			continue
		} else if !errors.Is(err, anchor.ErrNotFound) {
			return res, err
		}
		if err := anchor.SaveCustom(ctx, st, a); err != nil {
			return res, fmt.Errorf("import anchor %s: %w", a.Name, err)
		}
		res.AnchorsAdded++
	}

	return res, nil
}

// checkEdges makes sure every edge endpoint is a room in the bundle or
// already in the store, so a bad edge fails the import before any write.
func (c *contents) checkEdges(ctx context.Context, st *store.Store) error {
	known := make(map[string]bool, len(c.rooms.Rooms))
	for _, r := range c.rooms.Rooms {
		known[r.ID] = true
	}
	for _, e := range c.rooms.Edges {
		for _, id := range []string{e.A, e.B} {
			if known[id] {
				continue
			}
			_, err := room.Get(ctx, st, id)
			if errors.Is(err, room.ErrUnknownRoom) {
				return fmt.Errorf("invalid bundle: edge %s <-> %s: %w", e.A, e.B, err)
			}
			if err != nil {
				return err
			}
			known[id] = true
		}
	}
	return nil
}

// ReadManifest reads only the manifest from a bundle.
func ReadManifest(bundlePath string) (*Manifest, error) {
	c, err := read(bundlePath)
	if err != nil {
		return nil, err
	}
	return &c.manifest, nil
}

func read(bundlePath string) (*contents, error) {
	inFile, err := os.Open(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle: %w", err)
	}
	defer inFile.Close()

	gr, err := gzip.NewReader(inFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read gzip: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	c := &contents{}
	seenManifest := false

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", header.Name, err)
		}

		switch {
		case header.Name == manifestFile:
			if err := yaml.Unmarshal(data, &c.manifest); err != nil {
				return nil, fmt.Errorf("failed to parse manifest: %w", err)
			}
			seenManifest = true
		case header.Name == roomsFile:
			if err := yaml.Unmarshal(data, &c.rooms); err != nil {
				return nil, fmt.Errorf("failed to parse rooms: %w", err)
			}
		case header.Name == anchorsFile:
			if err := yaml.Unmarshal(data, &c.anchors); err != nil {
				return nil, fmt.Errorf("failed to parse anchors: %w", err)
			}
		case strings.HasPrefix(header.Name, sessionsDir):
			var sess session.Session
			if err := yaml.Unmarshal(data, &sess); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", header.Name, err)
			}
			c.sessions = append(c.sessions, &sess)
		}
	}

	if !seenManifest || c.manifest.Version == "" {
		return nil, fmt.Errorf("invalid bundle: missing or empty manifest")
	}
	if c.manifest.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported bundle version %q", c.manifest.Version)
	}
	return c, nil
}

// validate checks the bundle before anything is written.
func (c *contents) validate() error {
	for _, sess := range c.sessions {
		if sess.ID == "" {
			return fmt.Errorf("invalid bundle: session without id")
		}
		if sess.EmptyHeatDuration < 0 {
			return fmt.Errorf("invalid bundle: session %s: %w", sess.ID, session.ErrNegativeDuration)
		}
	}
	for i := range c.anchors.Anchors {
		if err := c.anchors.Anchors[i].Validate(); err != nil {
			return fmt.Errorf("invalid bundle: %w", err)
		}
	}
	for _, e := range c.rooms.Edges {
		if e.A == e.B {
			return fmt.Errorf("invalid bundle: %w", room.ErrSelfAdjacency)
		}
	}
	return nil
}
