package main

import (
	"gmdl/internal/services"

	"github.com/spf13/cobra"
)

func newProvisionCommand(load loader) *cobra.Command {
	var (
		lock     lockFlags
		dryRun   bool
		skipSeed bool
	)
	cmd := &cobra.Command{
		Use:   "provision <tenant>",
		Short: "Create the tenant database, run tenant migrations and seed it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(a *app) error {
				tenant, err := a.tenants.Find(cmd.Context(), args[0])
				if err != nil {
					return printFailure(cmd, err)
				}
				opts := a.provisioning.DefaultOptions(services.TriggerCLI)
				lock.apply(&opts)
				opts.DryRun = dryRun
				opts.Seed = !skipSeed

				res, err := a.provisioning.Provision(cmd.Context(), tenant, opts)
				return printResult(cmd, res, err)
			})
		},
	}
	lock.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the planned actions without executing them")
	cmd.Flags().BoolVar(&skipSeed, "skip-seed", false, "Do not run the tenant seeder")
	return cmd
}

func newMigrateCommand(load loader) *cobra.Command {
	var (
		lock      lockFlags
		all       bool
		seed      bool
		seedClass string
	)
	cmd := &cobra.Command{
		Use:   "migrate [tenant]",
		Short: "Run tenant migrations for one tenant, or every active tenant with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && args[0] == "all" {
				all = true
			}
			if !all && len(args) == 0 {
				return cmd.Help()
			}
			return withApp(load, func(a *app) error {
				opts := a.provisioning.DefaultOptions(services.TriggerCLI)
				lock.apply(&opts)
				opts.Seed = seed
				if seedClass != "" {
					opts.SeedClass = seedClass
				}
				if all {
					return migrateAll(cmd, a, opts)
				}

				tenant, err := a.tenants.Find(cmd.Context(), args[0])
				if err != nil {
					return printFailure(cmd, err)
				}
				res, err := a.provisioning.Migrate(cmd.Context(), tenant, opts)
				return printResult(cmd, res, err)
			})
		},
	}
	lock.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "Migrate every active tenant in id order")
	cmd.Flags().BoolVar(&seed, "seed", false, "Run the tenant seeder after migrating")
	cmd.Flags().StringVar(&seedClass, "seed-class", "", "Seeder to run (default TENANT_SEED_CLASS)")
	return cmd
}

func newMigrateAllCommand(load loader) *cobra.Command {
	var (
		lock      lockFlags
		seed      bool
		seedClass string
	)
	cmd := &cobra.Command{
		Use:   "migrate-all",
		Short: "Run tenant migrations for every active tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(a *app) error {
				opts := a.provisioning.DefaultOptions(services.TriggerCLI)
				lock.apply(&opts)
				opts.Seed = seed
				if seedClass != "" {
					opts.SeedClass = seedClass
				}
				return migrateAll(cmd, a, opts)
			})
		},
	}
	lock.register(cmd)
	cmd.Flags().BoolVar(&seed, "seed", false, "Run the tenant seeder after migrating")
	cmd.Flags().StringVar(&seedClass, "seed-class", "", "Seeder to run (default TENANT_SEED_CLASS)")
	return cmd
}

func migrateAll(cmd *cobra.Command, a *app, opts services.OperationOptions) error {
	batch, err := a.provisioning.MigrateAll(cmd.Context(), opts)
	if err != nil {
		return printFailure(cmd, err)
	}
	if !batch.OK {
		return printResult(cmd, batch, errOperationFailed)
	}
	return printResult(cmd, batch, nil)
}

func newRepairCommand(load loader) *cobra.Command {
	var (
		lock         lockFlags
		dryRun       bool
		skipCreateDB bool
		skipSeed     bool
		seedClass    string
	)
	cmd := &cobra.Command{
		Use:   "repair <tenant>",
		Short: "Re-run provisioning steps against an existing tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(a *app) error {
				tenant, err := a.tenants.Find(cmd.Context(), args[0])
				if err != nil {
					return printFailure(cmd, err)
				}
				opts := a.provisioning.DefaultOptions(services.TriggerCLI)
				lock.apply(&opts)
				opts.DryRun = dryRun
				opts.CreateDB = !skipCreateDB
				opts.Seed = !skipSeed
				if seedClass != "" {
					opts.SeedClass = seedClass
				}

				res, err := a.provisioning.Repair(cmd.Context(), tenant, opts)
				return printResult(cmd, res, err)
			})
		},
	}
	lock.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the planned actions without executing them")
	cmd.Flags().BoolVar(&skipCreateDB, "skip-create-db", false, "Assume the tenant database already exists")
	cmd.Flags().BoolVar(&skipSeed, "skip-seed", false, "Do not run the tenant seeder")
	cmd.Flags().StringVar(&seedClass, "seed-class", "", "Seeder to run (default TENANT_SEED_CLASS)")
	return cmd
}
