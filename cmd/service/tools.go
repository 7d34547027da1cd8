package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/forecast-proxy/internal/client"
	"github.com/kjstillabower/forecast-proxy/internal/params"
	"github.com/kjstillabower/forecast-proxy/internal/pricing"
)

func newCacheKeyCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "cachekey key=value [key=value...]",
		Short: "Print the cache key and upstream URL for a set of parameters",
		Long: `Prints the cache key and the upstream request URL for the given parameters.
Numeric values are treated as numbers, "key=" is an empty string and a bare "key" is absent.`,
		Example: "  forecast-proxy cachekey latitude=47.38 longitude=8.54 hourly=temperature_2m daily",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewOpenMeteoClient(baseURL, nil)
			if err != nil {
				return err
			}
			p := parsePairs(args)
			fmt.Fprintln(cmd.OutOrStdout(), params.CacheKey(p))
			fmt.Fprintln(cmd.OutOrStdout(), c.RequestURL(p))
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", client.DefaultBaseURL, "upstream base URL")
	return cmd
}

// parsePairs turns key=value arguments into params, keeping argument order.
func parsePairs(args []string) params.Params {
	var p params.Params
	for _, arg := range args {
		key, raw, found := strings.Cut(arg, "=")
		switch {
		case !found:
			p.Set(key, params.Absent())
		case raw == "":
			p.Set(key, params.String(""))
		default:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				p.Set(key, params.Number(f))
			} else {
				p.Set(key, params.String(raw))
			}
		}
	}
	return p
}

func newPriceCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "price base special extra extras discount",
		Short:   "Calculate a product price",
		Example: "  forecast-proxy price 10000 1000 2000 3 0",
		Args:    cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			var amounts [3]float64
			for i, name := range []string{"base", "special", "extra"} {
				v, err := strconv.ParseFloat(args[i], 64)
				if err != nil {
					return fmt.Errorf("%s price %q: %w", name, args[i], err)
				}
				amounts[i] = v
			}
			extras, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("extras %q: %w", args[3], err)
			}
			discount, err := strconv.ParseFloat(args[4], 64)
			if err != nil {
				return fmt.Errorf("discount %q: %w", args[4], err)
			}
			total := pricing.CalculatePrice(amounts[0], amounts[1], amounts[2], extras, discount)
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(total, 'f', -1, 64))
			return nil
		},
	}
}
