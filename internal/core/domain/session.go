package domain

// SessionState enumerates the conversation FSM positions.
type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateBrowsing      SessionState = "browsing"
	StateUploadCollect SessionState = "upload_collect"
	StateUploadCaption SessionState = "upload_caption"
	StateUploadDest    SessionState = "upload_dest"
)

// CaptionMode records how the batch caption was chosen during the optional
// captioning step.
type CaptionMode string

const (
	CaptionBlank    CaptionMode = "blank"
	CaptionOriginal CaptionMode = "original"
	CaptionCustom   CaptionMode = "custom"
)

// Session is the per-identity transient conversation state. It lives only in
// process memory; losing it is an accepted failure mode and the user restarts
// with /start. Position points into the shared category tree (nil = root),
// never at a copy of it.
type Session struct {
	Identity string
	State    SessionState

	// Position is the current tree position for both browse and
	// destination-pick traversal.
	Position *int64

	// Upload buffer, present only while in an upload state.
	Drafts      []DocumentDraft
	CaptionMode CaptionMode
	Caption     string
}

// NewSession returns an idle session rooted at the top of the tree.
func NewSession(identity string) *Session {
	return &Session{Identity: identity, State: StateIdle}
}

// Reset returns the session to idle at root and drops any buffered uploads.
func (s *Session) Reset() {
	s.State = StateIdle
	s.Position = nil
	s.Drafts = nil
	s.CaptionMode = ""
	s.Caption = ""
}

// BatchCaption resolves the caption to persist for one draft under the
// session's caption mode.
func (s *Session) BatchCaption(draft DocumentDraft) string {
	switch s.CaptionMode {
	case CaptionOriginal:
		return draft.OriginalCaption
	case CaptionCustom:
		return s.Caption
	default:
		return ""
	}
}
