package channel

import (
	"sort"
)

// CommitmentOutput is one side of a commitment.
type CommitmentOutput struct {
	PubKey string `json:"pubkey"`
	Amount uint64 `json:"amount"`
}

// CommitmentBody is the signed content of a commitment. It names the outputs
// by public key rather than by "mine" and "theirs", so both parties describing
// the same state produce the same bytes.
type CommitmentBody struct {
	ChannelID  string             `json:"channel_id"`
	FundingRef string             `json:"funding_reference"`
	Sequence   uint64             `json:"sequence"`
	Outputs    []CommitmentOutput `json:"outputs"`
}

// NewCommitmentBody describes the state of ch as seen by the owner of
// localPubKey.
func NewCommitmentBody(ch *Channel, localPubKey string) *CommitmentBody {
	outputs := []CommitmentOutput{
		{PubKey: localPubKey, Amount: ch.MyBalance},
		{PubKey: ch.PeerID, Amount: ch.PeerBalance},
	}

	sort.Slice(outputs, func(i, j int) bool {
		return outputs[i].PubKey < outputs[j].PubKey
	})

	return &CommitmentBody{
		ChannelID:  ch.ID,
		FundingRef: ch.FundingRef,
		Sequence:   ch.Sequence,
		Outputs:    outputs,
	}
}

// Encode returns the canonical encoding that gets signed.
func (b *CommitmentBody) Encode() ([]byte, error) {
	return marshal(b)
}

// DecodeCommitmentBody ...
func DecodeCommitmentBody(data []byte) (*CommitmentBody, error) {
	b := new(CommitmentBody)
	if err := unmarshal(data, b); err != nil {
		return nil, err
	}
	return b, nil
}

// BalanceOf returns the amount of the output owned by pubKey.
func (b *CommitmentBody) BalanceOf(pubKey string) (uint64, bool) {
	for _, o := range b.Outputs {
		if o.PubKey == pubKey {
			return o.Amount, true
		}
	}
	return 0, false
}
