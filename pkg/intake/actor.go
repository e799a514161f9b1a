package intake

// Actor is the identity performing an operation. Actors are stamped onto
// every event for audit purposes.
type Actor struct {
	Kind     ActorKind      `json:"kind"`
	ID       string         `json:"id"`
	Name     string         `json:"name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SystemActor returns the actor used for internally driven transitions
// (e.g. the TTL scheduler expiring a submission).
func SystemActor(id string) Actor {
	return Actor{Kind: ActorSystem, ID: id}
}
