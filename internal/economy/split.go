// Package economy holds the pure arithmetic of the gift economy: revenue
// splits, lucky outcomes and level badges. Nothing here touches storage.
package economy

// Default split rates, in percent of a gift's total cost.
const (
	DefaultHostDiamondPercent     int64 = 70
	DefaultAgentCommissionPercent int64 = 1
)

// Affiliation is the capability used to pick a split policy.
type Affiliation interface {
	HasAgency() bool
}

// Share is what a single recipient pass produces.
type Share struct {
	// RecipientShare is the even share totalCost / recipientCount.
	RecipientShare   int64
	HostDiamondBonus int64
	AgentCommission  int64
	HostProduction   int64
	Affiliated       bool
}

// Diamonds returns the diamonds credited to the recipient.
func (s Share) Diamonds() int64 {
	if s.Affiliated {
		return s.HostDiamondBonus
	}
	return s.RecipientShare
}

// Charm returns the charm credited to the recipient. Affiliated hosts still
// take the divided share here.
func (s Share) Charm() int64 {
	return s.RecipientShare
}

// Policy resolves one recipient's share of a gift.
type Policy interface {
	Resolve(totalCost int64, recipientCount int) Share
}

// HostAgencyPolicy applies to hosts that belong to an agency. The diamond
// bonus and agent commission are taken from the whole totalCost, not the
// divided share, so every affiliated recipient receives them independently.
type HostAgencyPolicy struct {
	HostDiamondPercent     int64
	AgentCommissionPercent int64
}

// Resolve implements Policy.
func (p HostAgencyPolicy) Resolve(totalCost int64, recipientCount int) Share {
	return Share{
		RecipientShare:   evenShare(totalCost, recipientCount),
		HostDiamondBonus: totalCost * p.HostDiamondPercent / 100,
		AgentCommission:  totalCost * p.AgentCommissionPercent / 100,
		HostProduction:   totalCost,
		Affiliated:       true,
	}
}

// PlainPolicy applies to every recipient without an agency.
type PlainPolicy struct{}

// Resolve implements Policy.
func (PlainPolicy) Resolve(totalCost int64, recipientCount int) Share {
	return Share{RecipientShare: evenShare(totalCost, recipientCount)}
}

// Splitter picks a policy per recipient using configured rates.
type Splitter struct {
	agency HostAgencyPolicy
}

// NewSplitter creates a Splitter. Non-positive percents fall back to the defaults.
func NewSplitter(hostPercent, agentPercent int64) *Splitter {
	if hostPercent <= 0 {
		hostPercent = DefaultHostDiamondPercent
	}
	if agentPercent <= 0 {
		agentPercent = DefaultAgentCommissionPercent
	}
	return &Splitter{agency: HostAgencyPolicy{
		HostDiamondPercent:     hostPercent,
		AgentCommissionPercent: agentPercent,
	}}
}

// PolicyFor selects the policy for a recipient.
func (s *Splitter) PolicyFor(recipient Affiliation) Policy {
	if recipient != nil && recipient.HasAgency() {
		return s.agency
	}
	return PlainPolicy{}
}

// Split resolves a recipient's share of totalCost.
func (s *Splitter) Split(totalCost int64, recipientCount int, recipient Affiliation) Share {
	return s.PolicyFor(recipient).Resolve(totalCost, recipientCount)
}

var defaultSplitter = NewSplitter(DefaultHostDiamondPercent, DefaultAgentCommissionPercent)

// Split resolves a recipient's share with the default rates.
func Split(totalCost int64, recipientCount int, recipient Affiliation) Share {
	return defaultSplitter.Split(totalCost, recipientCount, recipient)
}

func evenShare(totalCost int64, recipientCount int) int64 {
	if recipientCount <= 0 {
		return 0
	}
	return totalCost / int64(recipientCount)
}
