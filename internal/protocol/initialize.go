package protocol

import (
	"net/url"
	"os"
	"path/filepath"
)

// InitializeParams are the parameters of the initialize request.
type InitializeParams struct {
	ProcessID        int                `json:"processId"`
	RootURI          string             `json:"rootUri"`
	ClientInfo       ClientInfo         `json:"clientInfo"`
	Capabilities     ClientCapabilities `json:"capabilities"`
	WorkspaceFolders []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

// ClientInfo identifies the client to the server.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// WorkspaceFolder is a root directory the server should consider part of
// the workspace.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// ClientCapabilities advertise what this client understands. Only the
// capabilities the engine actually honors are declared; servers treat
// absent members as unsupported.
type ClientCapabilities struct {
	Workspace    *WorkspaceCapabilities    `json:"workspace,omitempty"`
	TextDocument *TextDocumentCapabilities `json:"textDocument,omitempty"`
}

// WorkspaceCapabilities cover workspace-level features.
type WorkspaceCapabilities struct {
	WorkspaceFolders       bool                               `json:"workspaceFolders"`
	DidChangeConfiguration DidChangeConfigurationCapabilities `json:"didChangeConfiguration"`
	WorkspaceEdit          WorkspaceEditCapabilities          `json:"workspaceEdit"`
	Configuration          bool                               `json:"configuration"`
}

// DidChangeConfigurationCapabilities cover configuration change support.
type DidChangeConfigurationCapabilities struct {
	DynamicRegistration bool `json:"dynamicRegistration"`
}

// WorkspaceEditCapabilities cover workspace edit support.
type WorkspaceEditCapabilities struct {
	DocumentChanges bool `json:"documentChanges"`
}

// TextDocumentCapabilities cover per-document features.
type TextDocumentCapabilities struct {
	Hover      HoverCapabilities      `json:"hover"`
	Completion CompletionCapabilities `json:"completion"`
	CodeAction CodeActionCapabilities `json:"codeAction"`
}

// HoverCapabilities cover hover content formats.
type HoverCapabilities struct {
	ContentFormat []string `json:"contentFormat"`
}

// CompletionCapabilities cover completion support.
type CompletionCapabilities struct {
	CompletionItem CompletionItemCapabilities `json:"completionItem"`
}

// CompletionItemCapabilities cover completion item support.
type CompletionItemCapabilities struct {
	SnippetSupport bool `json:"snippetSupport"`
}

// CodeActionCapabilities cover code action literal support.
type CodeActionCapabilities struct {
	CodeActionLiteralSupport CodeActionLiteralSupport `json:"codeActionLiteralSupport"`
}

// CodeActionLiteralSupport lists the code action kinds the client handles.
type CodeActionLiteralSupport struct {
	CodeActionKind CodeActionKindValueSet `json:"codeActionKind"`
}

// CodeActionKindValueSet is the set of supported code action kinds.
type CodeActionKindValueSet struct {
	ValueSet []string `json:"valueSet"`
}

// DefaultClientCapabilities returns the capability set this engine
// advertises by default.
func DefaultClientCapabilities() ClientCapabilities {
	return ClientCapabilities{
		Workspace: &WorkspaceCapabilities{
			WorkspaceFolders:       true,
			DidChangeConfiguration: DidChangeConfigurationCapabilities{DynamicRegistration: true},
			WorkspaceEdit:          WorkspaceEditCapabilities{DocumentChanges: true},
			Configuration:          true,
		},
		TextDocument: &TextDocumentCapabilities{
			Hover: HoverCapabilities{ContentFormat: []string{"plaintext"}},
			Completion: CompletionCapabilities{
				CompletionItem: CompletionItemCapabilities{SnippetSupport: true},
			},
			CodeAction: CodeActionCapabilities{
				CodeActionLiteralSupport: CodeActionLiteralSupport{
					CodeActionKind: CodeActionKindValueSet{
						ValueSet: []string{
							"source.organizeImports",
							"refactor.rewrite",
							"refactor.extract",
						},
					},
				},
			},
		},
	}
}

// InitializeOptions configure NewInitializeRequest. Zero-value fields fall
// back to sensible defaults (current process id, default capabilities).
type InitializeOptions struct {
	ProcessID        int
	RootURI          string
	ClientName       string
	ClientVersion    string
	Capabilities     *ClientCapabilities
	WorkspaceFolders []WorkspaceFolder
}

// NewInitializeRequest builds an initialize request with the protocol's
// expected parameter shape.
func NewInitializeRequest(id ID, opts InitializeOptions) (*Request, error) {
	if opts.ProcessID == 0 {
		opts.ProcessID = os.Getpid()
	}
	caps := DefaultClientCapabilities()
	if opts.Capabilities != nil {
		caps = *opts.Capabilities
	}
	params := InitializeParams{
		ProcessID:        opts.ProcessID,
		RootURI:          opts.RootURI,
		ClientInfo:       ClientInfo{Name: opts.ClientName, Version: opts.ClientVersion},
		Capabilities:     caps,
		WorkspaceFolders: opts.WorkspaceFolders,
	}
	return NewRequest(id, "initialize", params)
}

// NewInitializedNotification builds the initialized notification the client
// sends after a successful initialize handshake. Params is an empty object
// per the protocol.
func NewInitializedNotification() *Notification {
	return &Notification{
		JSONRPC: Version,
		Method:  "initialized",
		Params:  []byte("{}"),
	}
}

// FilePathToURI converts a local path to a file:// URI for rootUri and
// workspace folders.
func FilePathToURI(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// WorkspaceFolderFromPath builds a workspace folder entry for a local path.
func WorkspaceFolderFromPath(path string) WorkspaceFolder {
	return WorkspaceFolder{
		URI:  FilePathToURI(path),
		Name: filepath.Base(path),
	}
}
