// Package services implements the CRM use cases on top of the repositories.
// Every tenant-owned read or write goes through AccessService.Authorize first,
// and the resulting domain.Scope is handed to the repository call.
package services
