package services

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	"github.com/pingcap/tidb/pkg/parser/test_driver"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

// Functions that can stall the database or reach outside it.
var blockedFunctions = map[string]bool{
	"sleep":        true,
	"benchmark":    true,
	"load_file":    true,
	"get_lock":     true,
	"release_lock": true,
}

// ScopeResolver returns the caller's read scope on a resource, or a permission error.
type ScopeResolver func(resource string) (domain.Scope, error)

// QueryValidator parses ad-hoc report SQL and rewrites it so it can only read the caller's rows.
type QueryValidator struct{}

func NewQueryValidator() *QueryValidator {
	return &QueryValidator{}
}

// ValidateAndRewrite accepts a single SELECT over reportable tables. Each table needs read
// access on the resource behind it, and every reference is replaced by a derived table
// filtered on company_id, plus owner_id when that resource is only readable in own scope.
func (v *QueryValidator) ValidateAndRewrite(sql string, resolve ScopeResolver) (string, error) {
	if strings.TrimSpace(sql) == "" {
		return "", appErrors.NewValidationError("query", "query is required")
	}

	stmtNodes, _, err := parser.New().Parse(sql, "", "")
	if err != nil {
		return "", appErrors.NewValidationError("query", fmt.Sprintf("SQL parse error: %v", err))
	}
	if len(stmtNodes) != 1 {
		return "", appErrors.NewValidationError("query", "only single SQL statements are allowed")
	}
	stmt, ok := stmtNodes[0].(*ast.SelectStmt)
	if !ok {
		return "", appErrors.NewValidationError("query", "only SELECT statements are allowed")
	}

	visitor := &tenantVisitor{resolve: resolve, scopes: make(map[string]domain.Scope)}
	stmt.Accept(visitor)
	if visitor.err != nil {
		return "", visitor.err
	}

	var sb strings.Builder
	if err := stmt.Restore(format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)); err != nil {
		return "", appErrors.NewInternalError("SQL restore error", err)
	}
	return sb.String(), nil
}

type tenantVisitor struct {
	resolve ScopeResolver
	scopes  map[string]domain.Scope
	err     error
}

func (v *tenantVisitor) Enter(in ast.Node) (ast.Node, bool) {
	if v.err != nil {
		return in, true
	}
	switch n := in.(type) {
	case *ast.SelectStmt:
		if n.Kind != ast.SelectStmtKindSelect {
			v.err = appErrors.NewValidationError("query", "only SELECT statements are allowed")
		} else if n.SelectIntoOpt != nil || (n.LockInfo != nil && n.LockInfo.LockType != ast.SelectLockNone) {
			v.err = appErrors.NewValidationError("query", "SELECT INTO and locking reads are not allowed")
		}
	case *ast.TableName:
		v.err = v.checkTable(n)
	case *ast.FuncCallExpr:
		if blockedFunctions[n.FnName.L] {
			v.err = appErrors.NewValidationError("query", fmt.Sprintf("function %s is not allowed", n.FnName.O))
		}
	case *ast.VariableExpr:
		v.err = appErrors.NewValidationError("query", "variables are not allowed")
	}
	return in, v.err != nil
}

func (v *tenantVisitor) checkTable(t *ast.TableName) error {
	name := t.Name.L
	if t.Schema.O != "" {
		return appErrors.NewPermissionError(constants.PermRead, t.Schema.O+"."+t.Name.O)
	}
	resource, ok := constants.ReportableTables[name]
	if !ok {
		return appErrors.NewPermissionError(constants.PermRead, t.Name.O)
	}
	if _, seen := v.scopes[name]; seen {
		return nil
	}
	scope, err := v.resolve(resource)
	if err != nil {
		return err
	}
	if scope.CompanyID == "" {
		return appErrors.NewValidationError("company_id", "company is required")
	}
	if scope.IsOwnOnly() && !constants.OwnedTables[name] {
		return appErrors.NewPermissionError(constants.PermRead, t.Name.O)
	}
	v.scopes[name] = scope
	return nil
}

// Leave swaps each base table for its tenant-filtered derived table once its subtree is checked.
func (v *tenantVisitor) Leave(in ast.Node) (ast.Node, bool) {
	if v.err != nil {
		return in, false
	}
	ts, ok := in.(*ast.TableSource)
	if !ok {
		return in, true
	}
	tn, ok := ts.Source.(*ast.TableName)
	if !ok {
		return in, true
	}
	filtered, err := v.filteredTable(tn.Name.L)
	if err != nil {
		v.err = err
		return in, false
	}
	if ts.AsName.O == "" {
		ts.AsName = tn.Name
	}
	ts.Source = filtered
	return ts, true
}

// filteredTable builds SELECT * FROM `table` WHERE company_id = ? [AND owner_id = ?].
// Table names come from the allow list; ids are bound as literals.
func (v *tenantVisitor) filteredTable(table string) (*ast.SelectStmt, error) {
	scope, ok := v.scopes[table]
	if !ok {
		return nil, appErrors.NewPermissionError(constants.PermRead, table)
	}
	nodes, _, err := parser.New().Parse(fmt.Sprintf("SELECT * FROM `%s`", table), "", "")
	if err != nil {
		return nil, appErrors.NewInternalError("failed to build tenant filter", err)
	}
	sel := nodes[0].(*ast.SelectStmt)
	sel.Where = equals("company_id", scope.CompanyID)
	if scope.IsOwnOnly() {
		sel.Where = &ast.BinaryOperationExpr{
			Op: opcode.LogicAnd,
			L:  sel.Where,
			R:  equals("owner_id", scope.OwnerID),
		}
	}
	return sel, nil
}

func equals(column, value string) ast.ExprNode {
	lit := &test_driver.ValueExpr{}
	lit.SetString(value)
	return &ast.BinaryOperationExpr{
		Op: opcode.EQ,
		L:  &ast.ColumnNameExpr{Name: &ast.ColumnName{Name: ast.NewCIStr(column)}},
		R:  lit,
	}
}
