package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zatekoja/facility-discovery/internal/application/services"
	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
)

// Discovery is what the commands drive.
type Discovery interface {
	Discover(ctx context.Context, req services.DiscoveryRequest) (entities.SearchResult, error)
	Geocode(ctx context.Context, text string) (providers.GeocodeMatch, error)
	Locate(ctx context.Context, timeout time.Duration) (providers.Position, error)
	ClearCache(ctx context.Context) error
	ClearGeocodes(ctx context.Context) error
}

// engineOpener builds a Discovery and returns a function releasing it.
type engineOpener func(ctx context.Context) (Discovery, func() error, error)

func newRootCmd(out io.Writer, open engineOpener) *cobra.Command {
	root := &cobra.Command{
		Use:          "discover",
		Short:        "Find healthcare facilities near a place or position",
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.AddCommand(
		newSearchCmd(open),
		newGeocodeCmd(open),
		newLocateCmd(open),
		newCacheCmd(open),
	)
	return root
}

// withDiscovery opens the engine for one command run.
func withDiscovery(cmd *cobra.Command, open engineOpener, run func(ctx context.Context, d Discovery) (interface{}, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	v, err := run(ctx, d)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSearchCmd(open engineOpener) *cobra.Command {
	var (
		text      string
		lat, lon  float64
		radius    float64
		sortBy    string
		emergency bool
		ownership string
		specialty string
		debug     bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search facilities around a place (--q) or a coordinate (--lat/--lon)",
		Example: `  discover search --q "MG Road, Bengaluru" --radius 3 --sort rating
  discover search --lat 6.5244 --lon 3.3792 --emergency`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := services.DiscoveryRequest{
				Text:     text,
				RadiusKm: radius,
				SortBy:   entities.SortBy(sortBy),
				Filters: entities.Filters{
					EmergencyOnly: emergency,
					Specialty:     specialty,
				},
			}
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
				if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
					return fmt.Errorf("--lat and --lon must be given together")
				}
				req.Origin = &entities.Coordinate{Latitude: lat, Longitude: lon}
			}
			if ownership != "" {
				req.Filters.Ownership = entities.ParseOwnership(ownership)
				if req.Filters.Ownership == entities.OwnershipUnknown {
					return fmt.Errorf("--ownership must be public, private or nonprofit")
				}
			}

			return withDiscovery(cmd, open, func(ctx context.Context, d Discovery) (interface{}, error) {
				result, err := d.Discover(ctx, req)
				if err != nil {
					return nil, err
				}
				if !debug {
					result = result.WithoutRawPayloads()
				}
				return result, nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&text, "q", "", "address, place name or \"lat,lon\"")
	flags.Float64Var(&lat, "lat", 0, "origin latitude")
	flags.Float64Var(&lon, "lon", 0, "origin longitude")
	flags.Float64Var(&radius, "radius", 0, "search radius in km (default from DISCOVERY_DEFAULT_RADIUS_KM)")
	flags.StringVar(&sortBy, "sort", "distance", "distance, rating or name")
	flags.BoolVar(&emergency, "emergency", false, "only facilities with emergency care")
	flags.StringVar(&ownership, "ownership", "", "public, private or nonprofit")
	flags.StringVar(&specialty, "specialty", "", "required specialty, e.g. cardiology")
	flags.BoolVar(&debug, "debug", false, "include raw provider payloads")
	return cmd
}

func newGeocodeCmd(open engineOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "geocode <text>",
		Short: "Resolve an address or place name to a coordinate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDiscovery(cmd, open, func(ctx context.Context, d Discovery) (interface{}, error) {
				return d.Geocode(ctx, args[0])
			})
		},
	}
}

func newLocateCmd(open engineOpener) *cobra.Command {
	var (
		ip      string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Report the current position from the configured position source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDiscovery(cmd, open, func(ctx context.Context, d Discovery) (interface{}, error) {
				if ip != "" {
					ctx = providers.WithClientIP(ctx, ip)
				}
				return d.Locate(ctx, timeout)
			})
		},
	}
	cmd.Flags().StringVar(&ip, "ip", "", "locate this address instead of the machine's public one")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (default from GEOLOCATION_TIMEOUT)")
	return cmd
}

func newCacheCmd(open engineOpener) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the search cache",
	}
	var geocodes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop cached search results (or geocodes) on every instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDiscovery(cmd, open, func(ctx context.Context, d Discovery) (interface{}, error) {
				scope, clearFn := "search", d.ClearCache
				if geocodes {
					scope, clearFn = "geocode", d.ClearGeocodes
				}
				if err := clearFn(ctx); err != nil {
					return nil, err
				}
				return map[string]string{"status": "cleared", "scope": scope}, nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&geocodes, "geocodes", false, "drop cached geocoder answers instead of search results")
	cacheCmd.AddCommand(clearCmd)
	return cacheCmd
}
