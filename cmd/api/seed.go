package main

import (
	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository/memory"
)

type devUser struct {
	username string
	fullName string
	role     domain.Role
}

// seedDevData gives the in-memory store one department and a user per role.
// Every password equals the username.
func seedDevData(store *memory.Store, bcryptCost int) error {
	sistemas := store.AddDepartment("SISTEMAS", true)
	store.AddDepartment("COMPRAS", true)

	for _, u := range []devUser{
		{"admin", "Administrador", domain.RoleAdmin},
		{"manager", "Jefe de Sistemas", domain.RoleManager},
		{"agent", "Agente de Soporte", domain.RoleAgent},
		{"user", "Usuario Final", domain.RoleEndUser},
	} {
		hash, err := auth.HashPassword(u.username, bcryptCost)
		if err != nil {
			return err
		}
		user := domain.User{
			Username:     u.username,
			FullName:     u.fullName,
			Email:        u.username + "@example.com",
			PasswordHash: hash,
			Role:         u.role,
		}
		if u.role.IsStaff() {
			store.AddUser(user, sistemas.ID)
			continue
		}
		store.AddUser(user)
	}
	return nil
}
