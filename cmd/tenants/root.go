package main

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"gmdl/internal/services"
	apperrors "gmdl/pkg/errors"

	"github.com/spf13/cobra"
)

// errOperationFailed 失败结果已写到 stdout，只需非零退出
var errOperationFailed = errors.New("operation failed")

func newRootCommand(load loader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "tenants",
		Short:         "Tenant database lifecycle: provision, migrate, repair and run history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.AddCommand(
		newProvisionCommand(load),
		newMigrateCommand(load),
		newMigrateAllCommand(load),
		newRepairCommand(load),
		newRunsCommand(load),
	)
	return root
}

// lockFlags 所有变更类命令共用的参数
type lockFlags struct {
	timeout time.Duration
}

func (f *lockFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "How long to wait for the tenant lock (default TENANT_LOCK_TIMEOUT)")
}

func (f *lockFlags) apply(opts *services.OperationOptions) {
	if f.timeout > 0 {
		opts.Timeout = f.timeout
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult 输出结果，err 非空时返回 errOperationFailed
func printResult(cmd *cobra.Command, v interface{}, err error) error {
	if werr := writeJSON(cmd.OutOrStdout(), v); werr != nil {
		return werr
	}
	if err != nil {
		return errOperationFailed
	}
	return nil
}

// printFailure 尚未产生结果时（如租户不存在）输出统一的失败结构
func printFailure(cmd *cobra.Command, err error) error {
	body := map[string]interface{}{
		"ok":      false,
		"error":   apperrors.CodeInternal,
		"message": err.Error(),
	}
	if appErr, ok := apperrors.As(err); ok {
		body["error"] = appErr.Code
		body["message"] = appErr.Message
		for k, v := range appErr.Details {
			body[k] = v
		}
	}
	return printResult(cmd, body, err)
}

// withApp 建立依赖并在命令结束后释放
func withApp(load loader, fn func(a *app) error) error {
	a, err := load()
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
