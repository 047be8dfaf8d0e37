package cashu

// Secret is the UTF-8 string identifying a token within the spent-set. It
// is either a random hex string (ordinary proofs) or a deterministically
// derived one (wallet-restorable proofs, see crypto package).
type Secret string

// DLEQProof binds a BlindSignature (or, once attached to a Proof, the
// unblinded signature) to the mint's per-amount key without revealing it.
// R is only present on the wallet-held Proof form (Carol's verification
// needs the blinding factor); it is never sent by the node.
type DLEQProof struct {
	E string `json:"e"`
	S string `json:"s"`
	R string `json:"r,omitempty"`
}

// BlindedMessage is the wallet's blinded output request: B' =
// hash_to_curve(secret) + r*G.
type BlindedMessage struct {
	Amount Amount   `json:"amount"`
	Id     KeysetId `json:"id"`
	B_     string   `json:"B_"`
}

type BlindedMessages []BlindedMessage

func (bm BlindedMessages) Amount() (Amount, error) {
	amounts := make([]Amount, len(bm))
	for i, m := range bm {
		amounts[i] = m.Amount
	}
	return Sum(amounts)
}

// BlindSignature is the node's response to a BlindedMessage: C' = k*B'.
type BlindSignature struct {
	Amount Amount     `json:"amount"`
	Id     KeysetId   `json:"id"`
	C_     string     `json:"C_"`
	DLEQ   *DLEQProof `json:"dleq,omitempty"`
}

type BlindSignatures []BlindSignature

func (bs BlindSignatures) Amount() (Amount, error) {
	amounts := make([]Amount, len(bs))
	for i, s := range bs {
		amounts[i] = s.Amount
	}
	return Sum(amounts)
}

// Proof is an unblinded token: the wallet's proof of a valid mint
// signature over Secret, ready to be presented to the node in a swap or
// melt and exclusively owned by whoever holds it.
type Proof struct {
	Amount Amount     `json:"amount"`
	Id     KeysetId   `json:"id"`
	Secret Secret     `json:"secret"`
	C      string     `json:"C"`
	DLEQ   *DLEQProof `json:"dleq,omitempty"`
}

type Proofs []Proof

func (proofs Proofs) Amount() (Amount, error) {
	amounts := make([]Amount, len(proofs))
	for i, p := range proofs {
		amounts[i] = p.Amount
	}
	return Sum(amounts)
}

// CheckDuplicateProofs reports whether any two proofs in the slice are
// identical, used as an early InvalidRequest guard before the more
// detailed per-Y duplicate check in proof verification.
func CheckDuplicateProofs(proofs Proofs) bool {
	seen := make(map[Proof]bool, len(proofs))
	for _, p := range proofs {
		if seen[p] {
			return true
		}
		seen[p] = true
	}
	return false
}

// QuoteState is the shared vocabulary for mint- and melt-quote lifecycle
// text; the two state machines use disjoint subsets of it (mint-quote
// never reaches Pending, melt-quote never reaches Issued).
type QuoteState string

const (
	Unpaid  QuoteState = "UNPAID"
	Paid    QuoteState = "PAID"
	Pending QuoteState = "PENDING"
	Issued  QuoteState = "ISSUED"
)

// ProofState mirrors a proof's presence in the node's spent-set, returned
// by CheckState for wallet reconciliation.
type ProofState string

const (
	ProofUnspent ProofState = "UNSPENT"
	ProofPending ProofState = "PENDING"
	ProofSpent   ProofState = "SPENT"
)
