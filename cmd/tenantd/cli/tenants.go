package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/openlearn/tenantd/internal/db/models"
	"github.com/openlearn/tenantd/internal/tenancy"
)

func init() {
	rootCmd.AddCommand(tenantsCmd)
}

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Browse tenant records",
	Long: `Browse the configured tenants interactively. Selecting a tenant
prints its routed domains and lms configuration bucket.

When stdout is not a terminal the tenants are printed as a plain listing.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runTenants()
	},
}

func runTenants() error {
	_, database, err := loadEnvironment()
	if err != nil {
		return err
	}

	var tenants []models.TenantConfig
	if err := database.Preload("Routes").Order("id").Find(&tenants).Error; err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	if len(tenants) == 0 {
		fmt.Println("No tenants configured.")
		return nil
	}

	if !isTerminalInteractive() {
		printTenants(tenants)
		return nil
	}

	selected, err := showTenantSelector(tenants)
	if err != nil {
		return err
	}
	if selected == nil {
		return nil
	}

	printTenantDetails(selected)
	return nil
}

func printTenants(tenants []models.TenantConfig) {
	for _, t := range tenants {
		fmt.Printf("%d\t%s\t%s\n", t.ID, t.ExternalKey, strings.Join(routeDomains(t), ", "))
	}
}

func printTenantDetails(t *models.TenantConfig) {
	fmt.Printf("Tenant:  %s (id %d)\n", t.ExternalKey, t.ID)
	fmt.Printf("Domains: %s\n", strings.Join(routeDomains(*t), ", "))

	var bucket map[string]interface{}
	if err := json.Unmarshal(t.LMSConfigs, &bucket); err != nil || len(bucket) == 0 {
		fmt.Println("LMS configuration: (empty)")
		return
	}

	pretty, err := json.MarshalIndent(bucket, "", "  ")
	if err != nil {
		return
	}
	fmt.Printf("LMS configuration:\n%s\n", pretty)
}

func routeDomains(t models.TenantConfig) []string {
	domains := make([]string, 0, len(t.Routes))
	for _, route := range t.Routes {
		domains = append(domains, route.Domain)
	}
	if len(domains) == 0 {
		domains = append(domains, "(no routes)")
	}
	return domains
}

func showTenantSelector(tenants []models.TenantConfig) (*models.TenantConfig, error) {
	items := make([]list.Item, len(tenants))
	for i, t := range tenants {
		items[i] = tenantItem{tenant: t}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("#00FF00"))

	l := list.New(items, delegate, 80, 20)
	l.Title = "Tenants"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)

	m := tenantModel{list: l, tenants: tenants}
	p := tea.NewProgram(m)

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("UI error: %w", err)
	}

	result, ok := finalModel.(tenantModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type")
	}
	if result.canceled || result.selected == nil {
		return nil, nil
	}
	return result.selected, nil
}

// tenantItem implements list.Item interface.
type tenantItem struct {
	tenant models.TenantConfig
}

func (t tenantItem) FilterValue() string { return t.tenant.ExternalKey }

func (t tenantItem) Title() string { return t.tenant.ExternalKey }

func (t tenantItem) Description() string {
	desc := strings.Join(routeDomains(t.tenant), ", ")

	var bucket map[string]interface{}
	if err := json.Unmarshal(t.tenant.LMSConfigs, &bucket); err == nil {
		if tenancy.OptedIn(bucket) {
			desc += " • overrides enabled"
		}
	}
	return desc
}

type tenantModel struct {
	list     list.Model
	tenants  []models.TenantConfig
	selected *models.TenantConfig
	canceled bool
}

func (m tenantModel) Init() tea.Cmd { return nil }

func (m tenantModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			idx := m.list.Index()
			m.selected = &m.tenants[idx]
			return m, tea.Quit
		case "q", "ctrl+c", "esc":
			m.canceled = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height - 4)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m tenantModel) View() string {
	return "\n" + m.list.View() + "\n\n" +
		"↑/↓: Navigate • Enter: Inspect • q/Esc: Quit\n"
}

func isTerminalInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
