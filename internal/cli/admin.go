package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FairportRobotics/scouting-sync/internal/config"
	"github.com/FairportRobotics/scouting-sync/internal/sync"
)

// NewProvisionCommand creates the provision command, which creates the
// empty snapshot for each record type that does not have one yet.
func NewProvisionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create missing snapshots for all record types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), func(ctx context.Context, cfg *config.Config, deps *adminDeps) error {
				for _, tc := range sync.All() {
					created, err := deps.snapshots.Provision(ctx, tc.SnapshotName)
					if err != nil {
						return fmt.Errorf("provisioning %s: %w", tc.Key, err)
					}
					if created {
						cmd.Printf("created %s snapshot\n", tc.Key)
					} else {
						cmd.Printf("%s snapshot already exists\n", tc.Key)
					}
				}
				return nil
			})
		},
	}
}

// NewResetCommand creates the reset command. Resetting truncates a
// type's snapshot rows while keeping its accumulated columns; the raw
// archive and the mirror are left alone.
func NewResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <type>",
		Short: "Truncate a record type's snapshot, keeping its columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), func(ctx context.Context, cfg *config.Config, deps *adminDeps) error {
				result, err := deps.service.Handle(ctx, sync.Request{Type: args[0], Reset: true})
				if err != nil {
					return err
				}
				cmd.Println(result.Message)
				return nil
			})
		},
	}
}

// NewRefreshCommand creates the refresh command, which lists the keys a
// type's snapshot currently holds without mutating anything.
func NewRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <type>",
		Short: "List the keys in a record type's snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), func(ctx context.Context, cfg *config.Config, deps *adminDeps) error {
				result, err := deps.service.Handle(ctx, sync.Request{Type: args[0], Refresh: true})
				if err != nil {
					return err
				}
				cmd.Println(result.Message)
				for _, key := range result.DataFor {
					cmd.Println(key)
				}
				return nil
			})
		},
	}
}

type adminDeps struct {
	snapshots snapshotProvisioner
	service   *sync.Service
}

type snapshotProvisioner interface {
	Provision(ctx context.Context, name string) (bool, error)
}

// withStores runs fn against connected stores, closing them afterwards.
// Admin commands reuse the same pipeline the server runs, so CLI resets
// contend correctly with in-flight submissions.
func withStores(ctx context.Context, fn func(context.Context, *config.Config, *adminDeps) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	backend, err := openObjectStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	docs, err := openMirror(ctx, cfg)
	if err != nil {
		return err
	}
	defer docs.Close(context.Background())

	snapshots, service := buildPipeline(cfg, backend.store, docs)
	return fn(ctx, cfg, &adminDeps{snapshots: snapshots, service: service})
}
