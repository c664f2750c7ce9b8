package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"

	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/format"
)

// vatquote prices a basket of catalog products from the command line.
//
//	vatquote [-fixture catalog.yaml] [-locale tr|en] [-json] slug[:qty]...
//
// Exit code 0 = ok, 1 = bad input, 2 = other error.
func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vatquote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fixture := fs.String("fixture", "", "catalog YAML fixture (defaults to the embedded demo catalog)")
	locale := fs.String("locale", "tr", "display locale")
	asJSON := fs.Bool("json", false, "print the quote as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	view, err := quote(ctx, *fixture, *locale, fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "vatquote: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) || errors.Is(err, cart.ErrProductNotFound) || errors.Is(err, cart.ErrInvalidInput) ||
			errors.Is(err, cart.ErrInsufficientStock) {
			return 1
		}
		return 2
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			fmt.Fprintf(stderr, "vatquote: %v\n", err)
			return 2
		}
		return 0
	}
	printTable(stdout, view)
	return 0
}

func quote(ctx context.Context, fixture, locale string, items []string) (cart.View, error) {
	if len(items) == 0 {
		return cart.View{}, usageError{"at least one slug[:qty] is required"}
	}
	lang, err := language.Parse(locale)
	if err != nil {
		return cart.View{}, usageError{fmt.Sprintf("locale %q: %v", locale, err)}
	}

	repo, err := loadRepository(fixture)
	if err != nil {
		return cart.View{}, err
	}
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{Repository: repo})
	if err != nil {
		return cart.View{}, err
	}
	cartSvc, err := cart.NewService(cart.ServiceConfig{Store: cart.NewMemoryStore(), Catalog: catalogSvc})
	if err != nil {
		return cart.View{}, err
	}

	c, err := cartSvc.Create(ctx, "")
	if err != nil {
		return cart.View{}, err
	}
	for _, item := range items {
		slug, qty, err := parseItem(item)
		if err != nil {
			return cart.View{}, err
		}
		if _, err := cartSvc.AddItem(ctx, c.ID, slug, qty); err != nil {
			return cart.View{}, err
		}
	}
	q, err := cartSvc.Quote(ctx, c.ID)
	if err != nil {
		return cart.View{}, err
	}
	return cart.NewView(q, format.Locale("", lang)), nil
}

func loadRepository(path string) (*catalog.Repository, error) {
	if path == "" {
		return catalog.NewSeededRepository()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return catalog.LoadFixture(data)
}

func parseItem(item string) (string, int, error) {
	slug, rawQty, found := strings.Cut(strings.TrimSpace(item), ":")
	if slug == "" {
		return "", 0, usageError{fmt.Sprintf("item %q has no slug", item)}
	}
	if !found {
		return slug, 1, nil
	}
	qty, err := strconv.Atoi(rawQty)
	if err != nil || qty <= 0 {
		return "", 0, usageError{fmt.Sprintf("item %q: quantity must be a positive integer", item)}
	}
	return slug, qty, nil
}

func printTable(w io.Writer, v cart.View) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PRODUCT\tQTY\tVAT\tUNIT\tTOTAL\t")
	for _, l := range v.Lines {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t\n", l.Slug, l.Quantity, l.VATRateDisplay, l.UnitPriceInclusiveDisplay, l.LineTotalInclusiveDisplay)
	}
	fmt.Fprintln(tw, "\t\t\t\t\t")
	fmt.Fprintf(tw, "subtotal (excl. VAT)\t\t\t\t%s\t\n", v.Totals.SubtotalExclusiveDisplay)
	for _, t := range v.Totals.VATByTier {
		fmt.Fprintf(tw, "VAT %s\t\t\t\t%s\t\n", t.Tier, t.VATDisplay)
	}
	fmt.Fprintf(tw, "total VAT\t\t\t\t%s\t\n", v.Totals.TotalVATDisplay)
	fmt.Fprintf(tw, "total\t\t\t\t%s\t\n", v.Totals.TotalInclusiveDisplay)
	_ = tw.Flush()
}
