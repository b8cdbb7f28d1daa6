package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kopibar/pos/internal/apiclient"
)

func loginCmd(a *app) *cobra.Command {
	var pin string
	cmd := &cobra.Command{
		Use:   "login [username] [password]",
		Short: "Log in with a password or a PIN and print the access token",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				tokens *apiclient.Tokens
				err    error
			)
			switch {
			case pin != "":
				tokens, err = a.client.PinLogin(cmd.Context(), pin)
			case len(args) == 2:
				tokens, err = a.client.Login(cmd.Context(), args[0], args[1])
			default:
				return codeError(3, "give a username and password, or --pin")
			}
			if err != nil {
				return apiError("login", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Logged in as %s (%s)\n", tokens.User.Username, tokens.User.Role)
			fmt.Fprintf(cmd.OutOrStdout(), "export POS_TOKEN=%s\n", tokens.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&pin, "pin", "", "Log in with a PIN instead of a password")
	return cmd
}

func dayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "day",
		Short: "Open, close or inspect the business day",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "open",
		Short: "Open a new day session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			s, err := a.client.OpenDay(cmd.Context())
			if err != nil {
				return apiError("open day", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Day opened at %s (session %s)\n", s.OpenedAt.Local().Format("15:04"), s.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "close",
		Short: "Close the open day and every order in it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			sum, err := a.client.CloseDay(cmd.Context())
			if err != nil {
				return apiError("close day", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Day %s closed\n", sum.Date)
			fmt.Fprintf(out, "  orders: %d\n", sum.TotalOrders)
			fmt.Fprintf(out, "  sales:  %s\n", sum.TotalSales.StringFixed(2))
			fmt.Fprintf(out, "  closed: %d\n", sum.ClosedOrders)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether the store is open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			st, err := a.client.Status(cmd.Context())
			if err != nil {
				return apiError("status", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store: %s\n", st.Status)
			if st.Session != nil {
				fmt.Fprintf(out, "  since:  %s\n", st.Session.OpenedAt.Local().Format("2006-01-02 15:04"))
				fmt.Fprintf(out, "  orders: %d\n", st.Session.TotalOrders)
				fmt.Fprintf(out, "  sales:  %s\n", st.Session.TotalSales.StringFixed(2))
			}
			if st.Maintenance {
				fmt.Fprintln(out, "  maintenance mode is ON")
			}
			if st.IsTest {
				fmt.Fprintln(out, "  test mode is ON")
			}
			return nil
		},
	})
	return cmd
}

func historyCmd(a *app) *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List closed days, or show one day's orders",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				d, err := a.client.HistoryDetail(cmd.Context(), args[0])
				if err != nil {
					return apiError("history", err)
				}
				fmt.Fprintf(out, "Session %s: %d orders, %s\n", d.Session.ID, d.Session.TotalOrders, d.Session.TotalSales.StringFixed(2))
				for _, o := range d.Orders {
					printOrder(out, o)
				}
				return nil
			}

			p, err := a.client.History(cmd.Context(), page, limit)
			if err != nil {
				return apiError("history", err)
			}
			for _, s := range p.Sessions {
				fmt.Fprintf(out, "%s  %s  %4d orders  %10s\n", s.ID, s.OpenedAt.Local().Format("2006-01-02"), s.TotalOrders, s.TotalSales.StringFixed(2))
			}
			fmt.Fprintf(out, "page %d, %d of %d sessions\n", p.Page, len(p.Sessions), p.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "Sessions per page")
	return cmd
}

func menuCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Show the menu and global add-ons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			items, err := a.client.Menu(cmd.Context())
			if err != nil {
				return apiError("menu", err)
			}
			addons, err := a.client.GlobalAddons(cmd.Context())
			if err != nil {
				return apiError("global add-ons", err)
			}

			out := cmd.OutOrStdout()
			for _, m := range items {
				avail := ""
				if !m.Available {
					avail = " (sold out)"
				}
				fmt.Fprintf(out, "%s  %-24s %8s  %s/%s%s\n", m.ID, m.Name, m.Price.StringFixed(2), m.Category, m.Type, avail)
				for _, s := range m.Flavors.Sections {
					label := s.Name
					if label == "" {
						label = "options"
					}
					fmt.Fprintf(out, "      %s: %s\n", label, optionList(s.Options))
				}
			}
			for _, g := range addons {
				fmt.Fprintf(out, "add-on %s (max %d, %s): %s\n", g.Name, g.Max, typesLabel(g.AllowedTypes), optionList(g.Options))
			}
			return nil
		},
	}
}

func ticketsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List pending drink tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			tickets, err := a.client.DrinkTickets(cmd.Context())
			if err != nil {
				return apiError("drink tickets", err)
			}
			out := cmd.OutOrStdout()
			for _, t := range tickets {
				fmt.Fprintf(out, "%s  %-16s %s  %s\n", t.ID, t.CustomerName, where(t.TableNumber, t.BeeperNumber), string(t.Items))
			}
			if len(tickets) == 0 {
				fmt.Fprintln(out, "No pending drink tickets")
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "complete <ticket-id>",
		Short: "Mark a drink ticket as made",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			t, err := a.client.CompleteDrinkTicket(cmd.Context(), args[0])
			if err != nil {
				return apiError("complete ticket", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ticket for %s completed\n", t.CustomerName)
			return nil
		},
	})
	return cmd
}

func adminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Store-wide switches and reports",
	}

	toggle := func(use, short string, set func(*app, *cobra.Command, bool) (*apiclient.AppState, error)) *cobra.Command {
		return &cobra.Command{
			Use:       use + " on|off",
			Short:     short,
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"on", "off"},
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.requireToken(); err != nil {
					return err
				}
				on, err := parseOnOff(args[0])
				if err != nil {
					return codeError(3, "%s", err)
				}
				st, err := set(a, cmd, on)
				if err != nil {
					return apiError(use, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "maintenance=%t test=%t\n", st.Maintenance, st.TestMode)
				return nil
			},
		}
	}

	cmd.AddCommand(
		toggle("maintenance", "Block order entry for non-admin users", func(a *app, cmd *cobra.Command, on bool) (*apiclient.AppState, error) {
			return a.client.SetMaintenance(cmd.Context(), on)
		}),
		toggle("test-mode", "Tag new orders as test orders", func(a *app, cmd *cobra.Command, on bool) (*apiclient.AppState, error) {
			return a.client.SetTestMode(cmd.Context(), on)
		}),
	)

	var rng string
	analytics := &cobra.Command{
		Use:   "analytics",
		Short: "Sales summary for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			an, err := a.client.Analytics(cmd.Context(), rng)
			if err != nil {
				return apiError("analytics", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d orders, %s sales, avg %s\n", an.Range, an.OrderCount, an.TotalSales.StringFixed(2), an.AverageTicket.StringFixed(2))
			for _, it := range an.TopItems {
				fmt.Fprintf(out, "  %-24s %4d  %10s\n", it.Name, it.Quantity, it.Revenue.StringFixed(2))
			}
			return nil
		},
	}
	analytics.Flags().StringVar(&rng, "range", "today", "today, week or month")
	cmd.AddCommand(analytics)
	return cmd
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("want on or off, got %q", s)
	}
	return b, nil
}

func typesLabel(types []string) string {
	if len(types) == 0 {
		return "all items"
	}
	return strings.Join(types, ",")
}
