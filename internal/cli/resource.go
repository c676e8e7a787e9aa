package cli

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

var (
	resourceKind       string
	resourceID         string
	resourceAllocation float64
)

var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Manage people, crews and equipment",
}

var resourceAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a resource to the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("store not initialized")
		}
		id := resourceID
		if id == "" {
			id = uuid.NewString()
		}
		res := models.Resource{ID: id, Name: args[0], Kind: resourceKind}
		if err := Store.SaveResource(res); err != nil {
			return fmt.Errorf("saving resource: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added resource %s (%s)\n", res.Name, res.ID)
		return nil
	},
}

var resourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("store not initialized")
		}
		resources, err := Store.ListResources()
		if err != nil {
			return fmt.Errorf("listing resources: %w", err)
		}
		if len(resources) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No resources.")
			return nil
		}
		rows := make([][]string, 0, len(resources))
		for _, r := range resources {
			rows = append(rows, []string{r.ID, r.Name, r.Kind})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Kind"}, rows, nil))
		return nil
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign <project-id> <task> <resource-id>",
	Short: "Assign a resource to a task",
	Long: `Assign a resource to a task. --allocation is the fraction of the
resource's time (1 = full time). Assignments do not change dates.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireService(); err != nil {
			return err
		}
		ctx := commandContext(cmd)
		taskID, err := resolveTask(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		a, err := Service.AssignResource(ctx, args[0], models.ResourceAssignment{
			TaskID: taskID, ResourceID: args[2], Allocation: resourceAllocation,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to %s at %s\n", a.ResourceID, args[1],
			strconv.FormatFloat(a.Allocation, 'f', -1, 64))
		return nil
	},
}

func init() {
	resourceAddCmd.Flags().StringVar(&resourceKind, "kind", "", "Resource kind (crew, equipment, person)")
	resourceAddCmd.Flags().StringVar(&resourceID, "id", "", "Resource ID (generated when omitted)")
	assignCmd.Flags().Float64Var(&resourceAllocation, "allocation", 1, "Fraction of the resource's time")

	resourceCmd.AddCommand(resourceAddCmd, resourceListCmd)
	rootCmd.AddCommand(resourceCmd, assignCmd)
}
