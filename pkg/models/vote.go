// Package models provides the data model of the vote relay: the vote
// record carried from the queue to the relational sinks, plus its wire
// encodings.
package models

import (
	"bytes"
	"unicode/utf8"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/voterelay/pkg/errors"
)

// Vote is one ballot as produced by the voting front end. Both fields are
// opaque strings.
type Vote struct {
	VoterID string `json:"voter_id"`
	Vote    string `json:"vote"`
}

// RESTPayload is the body accepted by the DB2 REST vote service.
type RESTPayload struct {
	VoterID string `json:"voterid"`
	Voted   string `json:"voted"`
}

// wireVote uses pointers so that missing fields can be told apart from
// empty strings.
type wireVote struct {
	VoterID *string `json:"voter_id"`
	Vote    *string `json:"vote"`
}

// DecodeVote parses a queue message such as
// {"vote": "a", "voter_id": "71f0caa7172a84eb"}. Both fields are required
// and must be strings; unknown fields are ignored.
func DecodeVote(data []byte) (*Vote, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New(errors.ErrorTypeDecode, "vote message is not a JSON object").
			WithDetail("size", len(data))
	}

	if !utf8.Valid(trimmed) {
		return nil, errors.New(errors.ErrorTypeDecode, "vote message is not valid UTF-8").
			WithDetail("size", len(data))
	}

	var w wireVote
	if err := gojson.Unmarshal(trimmed, &w); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to parse vote message")
	}

	switch {
	case w.VoterID == nil:
		return nil, errors.New(errors.ErrorTypeDecode, "vote message is missing voter_id")
	case w.Vote == nil:
		return nil, errors.New(errors.ErrorTypeDecode, "vote message is missing vote")
	}

	return &Vote{VoterID: *w.VoterID, Vote: *w.Vote}, nil
}

// Encode renders the vote in its queue wire format.
func (v *Vote) Encode() ([]byte, error) {
	return gojson.Marshal(v)
}

// RESTPayload returns the REST request body for the vote.
func (v *Vote) RESTPayload() RESTPayload {
	return RESTPayload{VoterID: v.VoterID, Voted: v.Vote}
}
