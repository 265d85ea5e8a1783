// Package accounts builds the chart of accounts for a densified ledger.
package accounts

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cleared-dev/densify/internal/model"
)

// FileName is the chart of accounts file written next to the dense output.
const FileName = "chart-of-accounts.csv"

// Entry is one account in the chart.
type Entry struct {
	Code      int
	Name      string
	Type      model.AccountType
	Category  string
	Balancing bool
}

// Service provides in-memory lookup over the chart of accounts.
type Service struct {
	accounts []Entry
	byName   map[string]Entry
}

// NewService creates a Service from a slice of entries.
func NewService(accounts []Entry) *Service {
	byName := make(map[string]Entry, len(accounts))
	for _, a := range accounts {
		byName[a.Name] = a
	}
	return &Service{accounts: accounts, byName: byName}
}

// codeBase numbers each classification group; members are spaced by 10.
var codeBase = map[model.AccountType]int{
	model.AccountTypeAsset:            1000,
	model.AccountTypeLiability:        2000,
	model.AccountTypeEquity:           3000,
	model.AccountTypeRevenue:          4000,
	model.AccountTypeCostOfSales:      5000,
	model.AccountTypeOperatingExpense: 6000,
	model.AccountTypeOtherIncome:      7000,
}

// groupOrder is the order classifications appear in the chart.
var groupOrder = []model.AccountType{
	model.AccountTypeAsset,
	model.AccountTypeLiability,
	model.AccountTypeEquity,
	model.AccountTypeRevenue,
	model.AccountTypeCostOfSales,
	model.AccountTypeOperatingExpense,
	model.AccountTypeOtherIncome,
}

// Build groups every ledger account by classification and sorts each group
// by name. When out has a synthesized balancing account it is added to
// equity. out may be nil.
func Build(l *model.Ledger, out *model.Output) *Service {
	groups := make(map[model.AccountType][]Entry)
	for _, a := range l.Stock {
		groups[a.Type] = append(groups[a.Type], Entry{Name: a.Name, Type: a.Type, Category: a.Category, Balancing: a.Balancing})
	}
	for _, a := range l.Flow {
		groups[a.Type] = append(groups[a.Type], Entry{Name: a.Name, Type: a.Type, Category: a.Category})
	}
	if out != nil && out.Balancing.Synthesized {
		groups[out.Balancing.Type] = append(groups[out.Balancing.Type], Entry{
			Name: out.Balancing.Name, Type: out.Balancing.Type, Balancing: true,
		})
	}

	var all []Entry
	for _, typ := range groupOrder {
		g := groups[typ]
		slices.SortFunc(g, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
		for i := range g {
			g[i].Code = codeBase[typ] + 10*(i+1)
		}
		all = append(all, g...)
	}
	return NewService(all)
}

// Load reads chart-of-accounts.csv from dir and returns a Service.
func Load(dir string) (*Service, error) {
	path := filepath.Join(dir, FileName)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chart of accounts: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading chart of accounts: %w", err)
	}
	return NewService(accts), nil
}

// All returns all accounts in chart order.
func (s *Service) All() []Entry {
	return s.accounts
}

// Get returns an account by name.
func (s *Service) Get(name string) (Entry, bool) {
	a, ok := s.byName[name]
	return a, ok
}

// TypeOf returns the classification of a named account.
func (s *Service) TypeOf(name string) (model.AccountType, bool) {
	a, ok := s.byName[name]
	return a.Type, ok
}

// ByType returns all accounts of the given type.
func (s *Service) ByType(accountType model.AccountType) []Entry {
	var result []Entry
	for _, a := range s.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}

// Save writes the chart of accounts to <dir>/chart-of-accounts.csv.
func (s *Service) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	path := filepath.Join(dir, FileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart of accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, s.accounts); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}
	return nil
}
