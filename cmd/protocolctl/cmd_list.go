package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "List the customers linked to you",
	RunE:  runCustomers,
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List protocol templates",
	RunE:  runTemplates,
}

func runCustomers(cmd *cobra.Command, args []string) error {
	tok, err := bearerToken()
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	customers, err := c.ListCustomers(ctx, tok)
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}
	if len(customers) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No customers linked yet."))
		return nil
	}

	t := newTable("ID", "NAME", "EMAIL")
	for _, cu := range customers {
		t.Row(cu.ID, cu.Name, cu.Email)
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}

func runTemplates(cmd *cobra.Command, args []string) error {
	tok, err := bearerToken()
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	templates, err := c.ListTemplates(ctx, tok)
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}

	t := newTable("ID", "NAME", "DAYS", "PHASES")
	for _, tmpl := range templates {
		phases := make([]string, len(tmpl.Phases))
		for i, p := range tmpl.Phases {
			phases[i] = fmt.Sprintf("%s (%d)", p.Name, p.DurationDays)
		}
		t.Row(tmpl.ID, tmpl.Name, strconv.Itoa(tmpl.DefaultDurationDays), strings.Join(phases, " > "))
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}
