package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/jizoni-schedule/internal/core"
	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

var (
	linkType string
	linkLag  int
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage dependencies between tasks",
	Long: `Manage precedence relationships. Types are FS (finish to start, the
default), SS, FF and SF. --lag is in working days; a negative lag is a lead.

A relationship that would close a loop is rejected and recorded; see
"jzs loops".`,
}

var linkAddCmd = &cobra.Command{
	Use:   "add <project-id> <predecessor> <successor>",
	Short: "Add a dependency",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		ctx := commandContext(cmd)
		typ, err := models.ParseRelationType(linkType)
		if err != nil {
			return err
		}
		predID, err := resolveTask(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		succID, err := resolveTask(ctx, args[0], args[2])
		if err != nil {
			return err
		}
		rel, err := Service.AddRelationship(ctx, models.TaskRelationship{
			ProjectID: args[0], PredecessorID: predID, SuccessorID: succID, Type: typ, LagDays: linkLag,
		})
		if err != nil {
			return explainLoop(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Linked %s -> %s (%s %s)\n", args[1], args[2], relationCode(rel.Type), formatLag(rel.LagDays))
		return nil
	},
}

var linkUpdateCmd = &cobra.Command{
	Use:   "update <project-id> <predecessor> <successor>",
	Short: "Change the type or lag of a dependency",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		ctx := commandContext(cmd)
		typ, err := models.ParseRelationType(linkType)
		if err != nil {
			return err
		}
		predID, err := resolveTask(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		succID, err := resolveTask(ctx, args[0], args[2])
		if err != nil {
			return err
		}
		rel, err := Service.UpdateRelationship(ctx, args[0], predID, succID, typ, linkLag)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s -> %s (%s %s)\n", args[1], args[2], relationCode(rel.Type), formatLag(rel.LagDays))
		return nil
	},
}

var linkRemoveCmd = &cobra.Command{
	Use:   "remove <project-id> <predecessor> <successor>",
	Short: "Remove a dependency",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		ctx := commandContext(cmd)
		predID, err := resolveTask(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		succID, err := resolveTask(ctx, args[0], args[2])
		if err != nil {
			return err
		}
		if err := Service.RemoveRelationship(ctx, args[0], predID, succID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s -> %s\n", args[1], args[2])
		return nil
	},
}

// explainLoop rewrites a loop rejection so the offending chain is visible.
func explainLoop(err error) error {
	loop, ok := core.LoopFromError(err)
	if !ok {
		return err
	}
	return fmt.Errorf("relationship rejected, it would close the loop %s: %w", strings.Join(loop.TaskIDs, " -> "), err)
}

func init() {
	for _, c := range []*cobra.Command{linkAddCmd, linkUpdateCmd} {
		c.Flags().StringVarP(&linkType, "type", "t", "FS", "Relationship type (FS, SS, FF, SF)")
		c.Flags().IntVar(&linkLag, "lag", 0, "Lag in working days (negative for lead)")
	}
	linkCmd.AddCommand(linkAddCmd, linkUpdateCmd, linkRemoveCmd)
	rootCmd.AddCommand(linkCmd)
}
