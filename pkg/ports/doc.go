// Package ports declares the interfaces between the workflow core and its
// collaborators: the checkpoint store, the distributed locker, the text
// generation and query execution services, and the student directory.
// Adapters under pkg/adapters implement them.
package ports
