// Package sessiond is the session daemon: a long-lived process holding
// one [session.Manager] per vault path, outside the Command Gateway's
// stateless invocations (spec §4.8's open question on session
// persistence). The gateway does not consult it; imgvault mirrors its
// unlock and lock commands to it. Clients talk to it over a UNIX domain
// socket using newline-delimited
// JSON requests and responses instead of the generated-gRPC transport
// the teacher's own session daemon uses, since this environment cannot
// invoke protoc to regenerate .pb.go stubs.
package sessiond

// Request is one line of the client->daemon protocol.
type Request struct {
	Command   string `json:"command"` // "unlock", "lock", "status", "get_keys", "touch"
	VaultPath string `json:"vault_path"`
	Password  string `json:"password,omitempty"`
}

// Response is one line of the daemon->client protocol.
type Response struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"` // "locked", "unlocked", "locked_out"
	Error   string `json:"error,omitempty"`

	// FileKeyHex/TagKeyHex are populated only by a successful get_keys
	// reply, and only while the session is unlocked. They let the
	// requesting process build its own [vaultcrypto.Controller] without
	// the daemon ever performing vault operations itself.
	FileKeyHex string `json:"file_key_hex,omitempty"`
	TagKeyHex  string `json:"tag_key_hex,omitempty"`
}
