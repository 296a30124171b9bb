package imap

// NamespaceClass is the class of a namespace.
type NamespaceClass string

const (
	NamespacePersonal   NamespaceClass = "personal"
	NamespaceOtherUsers NamespaceClass = "other_users"
	NamespaceShared     NamespaceClass = "shared"
)

// Namespace describes a namespace returned by the NAMESPACE command.
type Namespace struct {
	Class  NamespaceClass
	Prefix string
	Delim  string
}

// NamespaceData is the list of namespaces of the account, in the order
// returned by the server: personal, other users, shared.
type NamespaceData []Namespace
