package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var categorySort int

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "管理资源分类",
}

var categoryAddCmd = &cobra.Command{
	Use:   "add <名称>",
	Short: "添加分类",
	Long:  "添加可用分类, 排序最靠前的分类是资源无法匹配时的默认分类。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		id, err := a.store.AddCategory(context.Background(), args[0], categorySort)
		if err != nil {
			return err
		}
		fmt.Printf("✅ 分类 %s: %d\n", args[0], id)
		return nil
	},
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出分类",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		categories, err := a.store.ListCategories(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\t名称\t排序")
		for _, c := range categories {
			fmt.Fprintf(w, "%d\t%s\t%d\n", c.ID, c.Name, c.Sort)
		}
		return w.Flush()
	},
}

func init() {
	categoryAddCmd.Flags().IntVar(&categorySort, "sort", 0, "排序, 越小越靠前")
	categoryCmd.AddCommand(categoryAddCmd, categoryListCmd)
}
