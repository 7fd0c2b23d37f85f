package domain

// UserRole é o papel carregado no token de acesso. Os tokens são emitidos
// fora deste serviço; aqui eles só são validados.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"  // administra atributos e importações
	RoleEditor UserRole = "editor" // edita variantes e estoque
	RoleViewer UserRole = "viewer"
)
