// Package codec serializes episode datasets to and from their JSON document.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/kidnapped/internal/domain/episode"
	"github.com/okian/kidnapped/internal/domain/peer"
)

// ErrDecode marks a document that is not a valid episode dataset.
var ErrDecode = errors.New("decode episode dataset")

type datasetDoc struct {
	SequenceName string       `json:"sequence_name"`
	Episodes     []episodeDoc `json:"episodes"`
}

type episodeDoc struct {
	EpisodeID    int             `json:"episode_id"`
	SequenceName string          `json:"sequence_name"`
	QueryImage   string          `json:"query_image"`
	Peers        []peerViewDoc   `json:"peers"`
	Metadata     *map[string]any `json:"metadata,omitempty"`
}

type peerViewDoc struct {
	PeerID    uint64 `json:"peer_id"`
	ImagePath string `json:"image_path"`
	IsHelpful bool   `json:"is_helpful"`
}

// Marshal renders the dataset as an indented JSON document terminated by a
// newline. Map keys are sorted, so equal datasets render to equal bytes.
func Marshal(ds *episode.Dataset) ([]byte, error) {
	doc := datasetDoc{
		SequenceName: ds.SequenceName,
		Episodes:     make([]episodeDoc, len(ds.Episodes)),
	}
	for i, ep := range ds.Episodes {
		ed := episodeDoc{
			EpisodeID:    ep.EpisodeID,
			SequenceName: ep.SequenceName,
			QueryImage:   ep.QueryImage,
			Peers:        make([]peerViewDoc, len(ep.Peers)),
		}
		for j, v := range ep.Peers {
			ed.Peers[j] = peerViewDoc{
				PeerID:    uint64(v.PeerID),
				ImagePath: v.ImagePath,
				IsHelpful: v.IsHelpful,
			}
		}
		if ep.Metadata != nil {
			// a present but empty mapping is still written
			meta := map[string]any(ep.Metadata)
			ed.Metadata = &meta
		}
		doc.Episodes[i] = ed
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode episode dataset: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a dataset document. A missing "episodes" key yields an
// empty dataset; a missing "metadata" key yields absent metadata.
func Unmarshal(data []byte) (*episode.Dataset, error) {
	var raw struct {
		SequenceName *string                      `json:"sequence_name"`
		Episodes     []map[string]json.RawMessage `json:"episodes"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if raw.SequenceName == nil {
		return nil, fmt.Errorf("%w: missing sequence_name", ErrDecode)
	}

	ds := &episode.Dataset{
		SequenceName: *raw.SequenceName,
		Episodes:     make([]episode.Episode, 0, len(raw.Episodes)),
	}
	for i, fields := range raw.Episodes {
		ep, err := decodeEpisode(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: episodes[%d]: %w", ErrDecode, i, err)
		}
		ds.Episodes = append(ds.Episodes, ep)
	}
	return ds, nil
}

func decodeEpisode(fields map[string]json.RawMessage) (episode.Episode, error) {
	var ep episode.Episode
	for _, key := range []string{"episode_id", "sequence_name", "query_image"} {
		if _, ok := fields[key]; !ok {
			return ep, fmt.Errorf("missing %s", key)
		}
	}
	if err := json.Unmarshal(fields["episode_id"], &ep.EpisodeID); err != nil {
		return ep, fmt.Errorf("episode_id: %w", err)
	}
	if err := json.Unmarshal(fields["sequence_name"], &ep.SequenceName); err != nil {
		return ep, fmt.Errorf("sequence_name: %w", err)
	}
	var query string
	if err := json.Unmarshal(fields["query_image"], &query); err != nil {
		return ep, fmt.Errorf("query_image: %w", err)
	}
	ep.QueryImage = peer.CleanPath(query)

	if rawPeers, ok := fields["peers"]; ok {
		var views []peerViewDoc
		if err := json.Unmarshal(rawPeers, &views); err != nil {
			return ep, fmt.Errorf("peers: %w", err)
		}
		ep.Peers = make([]episode.PeerView, len(views))
		for j, v := range views {
			ep.Peers[j] = episode.PeerView{
				PeerID:    peer.ID(v.PeerID),
				ImagePath: peer.CleanPath(v.ImagePath),
				IsHelpful: v.IsHelpful,
			}
		}
	} else {
		ep.Peers = []episode.PeerView{}
	}

	if rawMeta, ok := fields["metadata"]; ok {
		meta, err := decodeMetadata(rawMeta)
		if err != nil {
			return ep, fmt.Errorf("metadata: %w", err)
		}
		ep.Metadata = meta
	}
	return ep, nil
}

func decodeMetadata(raw json.RawMessage) (episode.Metadata, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		out := make(episode.Metadata, len(m))
		for k, val := range m {
			out[k] = normalizeValue(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected object, got %T", v)
	}
}

// normalizeValue converts json.Number into int64 when integral and float64
// otherwise, recursively.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeValue(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeValue(val)
		}
		return t
	default:
		return v
	}
}

