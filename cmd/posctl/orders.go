package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kopibar/pos/internal/apiclient"
	"github.com/kopibar/pos/internal/catalog"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/orderstore"
)

// itemSpec is one --item flag: <id-or-name>[:qty[:opt,opt...]].
type itemSpec struct {
	ref      string
	quantity int
	selected []string
}

func parseItemSpec(s string) (itemSpec, error) {
	parts := strings.SplitN(s, ":", 3)
	line := itemSpec{ref: strings.TrimSpace(parts[0]), quantity: 1}
	if line.ref == "" {
		return itemSpec{}, fmt.Errorf("item %q: missing menu item", s)
	}
	if len(parts) > 1 && parts[1] != "" {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n <= 0 {
			return itemSpec{}, fmt.Errorf("item %q: quantity must be a positive number", s)
		}
		line.quantity = n
	}
	if len(parts) > 2 {
		for _, opt := range strings.Split(parts[2], ",") {
			if opt = strings.TrimSpace(opt); opt != "" {
				line.selected = append(line.selected, opt)
			}
		}
	}
	return line, nil
}

// resolveItem finds a menu item by id or by case-insensitive name.
func resolveItem(menu []catalog.MenuItem, ref string) (catalog.MenuItem, bool) {
	for _, m := range menu {
		if m.ID.String() == ref || strings.EqualFold(m.Name, ref) {
			return m, true
		}
	}
	return catalog.MenuItem{}, false
}

func orderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Take and manage orders",
	}
	cmd.AddCommand(orderCreateCmd(a), orderListCmd(a), orderStatusCmd(a), orderPayCmd(a))
	return cmd
}

func orderCreateCmd(a *app) *cobra.Command {
	var (
		items []string
		d     orderstore.Details
	)
	cmd := &cobra.Command{
		Use:   "create --item <item>[:qty[:options]] ...",
		Short: "Ring up an order; queued locally if the server is unreachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			if len(items) == 0 {
				return codeError(3, "at least one --item is required")
			}
			ctx := cmd.Context()

			menu, err := a.client.Menu(ctx)
			if err != nil {
				return apiError("menu", err)
			}
			addons, err := a.client.GlobalAddons(ctx)
			if err != nil {
				return apiError("global add-ons", err)
			}

			cart := orderstore.NewCart(menu, addons)
			for _, raw := range items {
				line, err := parseItemSpec(raw)
				if err != nil {
					return codeError(3, "%s", err)
				}
				m, ok := resolveItem(menu, line.ref)
				if !ok {
					return codeError(3, "no menu item %q", line.ref)
				}
				if err := cart.Add(m.ID.String(), line.quantity, line.selected); err != nil {
					return codeError(3, "%s: %s", m.Name, err)
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Cart total %s\n", cart.Total().StringFixed(2))

			store, err := a.newStore()
			if err != nil {
				return err
			}
			res, err := store.Create(ctx, cart, d)
			if err != nil {
				return apiError("create order", err)
			}
			if res.Queued {
				fmt.Fprintf(cmd.OutOrStdout(), "Saved offline as %s; run `posctl queue drain` when back online\n", res.Order.ID)
				return nil
			}
			printOrder(cmd.OutOrStdout(), res.Order)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&items, "item", nil, "Menu item id or name, with optional :qty and :option,option (repeatable)")
	f.StringVar(&d.CustomerName, "customer", "", "Customer name")
	f.StringVar(&d.TableNumber, "table", "", "Table number")
	f.StringVar(&d.BeeperNumber, "beeper", "", "Beeper number")
	f.StringVar(&d.OrderType, "type", enum.OrderTypeDineIn, "dine-in or take-out")
	f.StringVar(&d.PaymentMethod, "pay", enum.PaymentMethodCash, "CASH, GCASH, BANK_TRANSFER or PAY_LATER")
	f.StringVar(&d.AmountTendered, "tendered", "", "Cash handed over")
	return cmd
}

func orderListCmd(a *app) *cobra.Command {
	var window int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			orders, err := a.client.ActiveOrders(cmd.Context(), window)
			if err != nil {
				return apiError("active orders", err)
			}
			for _, o := range orders {
				printOrder(cmd.OutOrStdout(), o)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&window, "hours", 0, "Only orders from the last N hours (server default when 0)")
	return cmd
}

// loadedStore returns a store holding the server's current active orders.
func (a *app) loadedStore(ctx context.Context) (*orderstore.Store, error) {
	store, err := a.newStore()
	if err != nil {
		return nil, err
	}
	if err := store.Refresh(ctx); err != nil {
		return nil, apiError("active orders", err)
	}
	return store, nil
}

func orderStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Move an order through preparing, ready, completed, cancelled or voided",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			store, err := a.loadedStore(cmd.Context())
			if err != nil {
				return err
			}
			o, err := store.UpdateStatus(cmd.Context(), args[0], strings.ToLower(args[1]))
			if err != nil {
				return apiError("update status", err)
			}
			printOrder(cmd.OutOrStdout(), o)
			return nil
		},
	}
}

func orderPayCmd(a *app) *cobra.Command {
	var req apiclient.MarkPaidRequest
	cmd := &cobra.Command{
		Use:   "pay <order-id>",
		Short: "Settle a Pay Later order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			store, err := a.loadedStore(cmd.Context())
			if err != nil {
				return err
			}
			o, err := store.MarkPaid(cmd.Context(), args[0], req)
			if err != nil {
				return apiError("mark paid", err)
			}
			printOrder(cmd.OutOrStdout(), o)
			if o.ChangeAmount != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Change due: %s\n", o.ChangeAmount.StringFixed(2))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.PaymentMethod, "method", enum.PaymentMethodCash, "CASH, GCASH or BANK_TRANSFER")
	cmd.Flags().StringVar(&req.AmountTendered, "tendered", "", "Cash handed over")
	return cmd
}

func kitchenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kitchen",
		Short: "Kitchen display",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Follow orders live until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, err := a.loadedStore(ctx)
			if err != nil {
				return err
			}
			printBoard(out, store.Orders())

			err = a.client.Subscribe(ctx, apiclient.SubscribeOptions{
				OnEvent: func(ev apiclient.Event) {
					store.HandleEvent(ev)
					switch ev.Type {
					case enum.EventOrderNew, enum.EventOrderUpdate, enum.EventSessionUpdate:
						printBoard(out, store.Orders())
					case enum.EventTicketNew:
						fmt.Fprintln(out, "New drink ticket; run `posctl tickets`")
					}
				},
				OnReconnect: func() {
					res, err := store.Resync(ctx)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "resync: %s\n", err)
					} else if res.Submitted+res.Duplicates+res.Dropped > 0 {
						fmt.Fprintf(cmd.ErrOrStderr(), "offline queue: %d synced, %d already on server, %d rejected\n", res.Submitted, res.Duplicates, res.Dropped)
					}
					printBoard(out, store.Orders())
				},
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	})
	return cmd
}

func queueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and flush orders saved while offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			queued, err := orderstore.NewFileQueue(a.cfg.QueueFile).Load()
			if err != nil {
				return codeError(3, "%s", err)
			}
			out := cmd.OutOrStdout()
			for _, q := range queued {
				fmt.Fprintf(out, "%s  %s  %-16s %10s\n", q.LocalID, q.QueuedAt.Local().Format("15:04:05"), q.Preview.CustomerName, q.Preview.Total.StringFixed(2))
			}
			fmt.Fprintf(out, "%d queued\n", len(queued))
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Submit queued orders, skipping any the server already has",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			store, err := a.newStore()
			if err != nil {
				return err
			}
			res, err := store.Resync(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%d submitted, %d already on server, %d rejected, %d still queued\n",
				res.Submitted, res.Duplicates, res.Dropped, res.Remaining)
			if err != nil {
				return apiError("drain", err)
			}
			return nil
		},
	})
	return cmd
}

// --- Output ---

func printOrder(w io.Writer, o apiclient.Order) {
	fmt.Fprintf(w, "%s  %-16s %-9s %-7s %-13s %10s  %s\n",
		o.ID, o.CustomerName, o.Status, o.PaymentStatus, o.PaymentMethod, o.Total.StringFixed(2), where(o.TableNumber, o.BeeperNumber))
	for _, it := range o.Items {
		opts := ""
		if len(it.SelectedFlavors) > 0 {
			opts = " (" + strings.Join(it.SelectedFlavors, ", ") + ")"
		}
		fmt.Fprintf(w, "    %dx %s%s\n", it.Quantity, it.Name, opts)
	}
}

func printBoard(w io.Writer, recs []orderstore.Record) {
	fmt.Fprintf(w, "--- %d active orders ---\n", len(recs))
	for _, r := range recs {
		if r.Provisional() {
			fmt.Fprint(w, "* ")
		}
		printOrder(w, r.Order)
	}
}

func where(table, beeper *string) string {
	switch {
	case table != nil && *table != "":
		return "table " + *table
	case beeper != nil && *beeper != "":
		return "beeper " + *beeper
	}
	return "-"
}

func optionList(opts []catalog.FlavorOption) string {
	names := make([]string, len(opts))
	for i, o := range opts {
		names[i] = o.Name
		if !o.Price.IsZero() {
			names[i] += " +" + o.Price.StringFixed(2)
		}
	}
	return strings.Join(names, ", ")
}
