package cmd

import (
	"github.com/spf13/cobra"

	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/validate"
)

// categoryCmd represents the category command.
var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"categories", "cat"},
	Short:   "Manage categories",
	Long: `Categories group projects and tasks by kind.

Examples:
  taskmap category create "Research" --type project --color "#3B82F6"
  taskmap category --type project
  taskmap category delete cat-20240313100000-ab12cd3`,
	RunE: runCategoryList,
}

// tagCmd represents the tag command.
var tagCmd = &cobra.Command{
	Use:     "tag",
	Aliases: []string{"tags"},
	Short:   "Manage tags",
	Long: `Tags are free-form labels. Tag names are lowercased and may contain
letters, digits and dashes.

Examples:
  taskmap tag create deep-work --color "#10B981"
  taskmap tag
  taskmap tag delete tag-20240313100000-ab12cd3`,
	RunE: runTagList,
}

// Category and tag flags.
var (
	categoryFlagID    string
	categoryFlagName  string
	categoryFlagType  string
	categoryFlagColor string
	categoryFlagIcon  string
	categoryFlagOrder int

	tagFlagID    string
	tagFlagColor string
)

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	Args:  cobra.NoArgs,
	RunE:  runCategoryList,
}

var categoryCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a category",
	Args:  cobra.ExactArgs(1),
	RunE:  runCategoryCreate,
}

var categoryUpdateCmd = &cobra.Command{
	Use:               "update CATEGORY_ID",
	Aliases:           []string{"edit"},
	Short:             "Update a category",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeCategoryArgs,
	RunE:              runCategoryUpdate,
}

var categoryDeleteCmd = &cobra.Command{
	Use:               "delete CATEGORY_ID",
	Aliases:           []string{"rm"},
	Short:             "Delete a category",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeCategoryArgs,
	RunE:              runCategoryDelete,
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
	Args:  cobra.NoArgs,
	RunE:  runTagList,
}

var tagCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagCreate,
}

var tagDeleteCmd = &cobra.Command{
	Use:               "delete TAG_ID",
	Aliases:           []string{"rm"},
	Short:             "Delete a tag",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTagArgs,
	RunE:              runTagDelete,
}

func init() {
	for _, c := range []*cobra.Command{categoryCmd, categoryListCmd} {
		c.Flags().StringVarP(&categoryFlagType, "type", "t", "", "Filter by type")
	}
	for _, c := range []*cobra.Command{categoryCreateCmd, categoryUpdateCmd} {
		c.Flags().StringVarP(&categoryFlagType, "type", "t", "", "Category type, e.g. project or task")
		c.Flags().StringVar(&categoryFlagColor, "color", "", "Hex color (#RRGGBB)")
		c.Flags().StringVar(&categoryFlagIcon, "icon", "", "Icon")
		c.Flags().IntVar(&categoryFlagOrder, "order", 0, "Sort order")
	}
	categoryCreateCmd.Flags().StringVar(&categoryFlagID, "id", "", "Custom ID (generated if omitted)")
	categoryUpdateCmd.Flags().StringVarP(&categoryFlagName, "name", "n", "", "New name")

	for _, c := range []*cobra.Command{tagCmd, tagListCmd, tagCreateCmd} {
		c.Flags().StringVar(&tagFlagColor, "color", "", "Hex color (#RRGGBB)")
	}
	tagCreateCmd.Flags().StringVar(&tagFlagID, "id", "", "Custom ID (generated if omitted)")

	categoryCmd.AddCommand(categoryListCmd, categoryCreateCmd, categoryUpdateCmd, categoryDeleteCmd)
	tagCmd.AddCommand(tagListCmd, tagCreateCmd, tagDeleteCmd)
	rootCmd.AddCommand(categoryCmd, tagCmd)
}

func runCategoryList(cmd *cobra.Command, args []string) error {
	var (
		categories []*model.Category
		err        error
	)
	if categoryFlagType != "" {
		categories, err = ctx.DB.Categories.GetByType(cmd.Context(), categoryFlagType)
	} else {
		categories, err = ctx.DB.Categories.GetAll(cmd.Context())
	}
	if err != nil {
		return err
	}
	return printItems(categories, ctx.CLIFormatter().PrintCategories)
}

func runCategoryCreate(cmd *cobra.Command, args []string) error {
	name := validate.SanitizeName(args[0])
	if err := validate.Name("category", name); err != nil {
		return err
	}
	if err := validate.ID(categoryFlagID); err != nil {
		return err
	}
	if err := validate.HexColor(categoryFlagColor); err != nil {
		return err
	}

	cat := model.NewCategory(name, categoryFlagType)
	cat.ID = categoryFlagID
	cat.Color = categoryFlagColor
	cat.Icon = categoryFlagIcon
	cat.Order = categoryFlagOrder

	cat, err := ctx.DB.Categories.Create(cmd.Context(), cat)
	if err != nil {
		return err
	}
	return printEntity(cat, func() {
		ctx.CLIFormatter().Success("Created category: " + cat.ID)
	})
}

func runCategoryUpdate(cmd *cobra.Command, args []string) error {
	id := args[0]
	flags := cmd.Flags()
	patch := model.Record{}

	if flags.Changed("name") {
		name := validate.SanitizeName(categoryFlagName)
		if err := validate.Name("category", name); err != nil {
			return err
		}
		patch["name"] = name
	}
	if flags.Changed("type") {
		patch["type"] = categoryFlagType
	}
	if flags.Changed("color") {
		if err := validate.HexColor(categoryFlagColor); err != nil {
			return err
		}
		patch["color"] = categoryFlagColor
	}
	if flags.Changed("icon") {
		patch["icon"] = categoryFlagIcon
	}
	if flags.Changed("order") {
		patch["order"] = categoryFlagOrder
	}
	if len(patch) == 0 {
		return noChanges("--name, --type, --color, --icon or --order")
	}

	ok, err := ctx.DB.Categories.Update(cmd.Context(), id, patch)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NotFound(errors.ErrCategoryNotFound, id)
	}
	cat, err := ctx.DB.Categories.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printEntity(cat, func() {
		ctx.CLIFormatter().Success("Updated category: " + id)
	})
}

func runCategoryDelete(cmd *cobra.Command, args []string) error {
	deleted, err := ctx.DB.Categories.Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printDeleted("category", args[0], deleted)
}

func runTagList(cmd *cobra.Command, args []string) error {
	var (
		tags []*model.Tag
		err  error
	)
	if tagFlagColor != "" {
		tags, err = ctx.DB.Tags.GetByColor(cmd.Context(), tagFlagColor)
	} else {
		tags, err = ctx.DB.Tags.GetAll(cmd.Context())
	}
	if err != nil {
		return err
	}
	return printItems(tags, ctx.CLIFormatter().PrintTags)
}

func runTagCreate(cmd *cobra.Command, args []string) error {
	name := validate.SanitizeTag(args[0])
	if err := validate.Name("tag", name); err != nil {
		return err
	}
	if err := validate.ID(tagFlagID); err != nil {
		return err
	}
	if err := validate.HexColor(tagFlagColor); err != nil {
		return err
	}

	existing, err := ctx.DB.Tags.GetByName(cmd.Context(), name)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return &errors.UserError{
			Message:    "tag " + name + " already exists",
			Suggestion: "Use the existing tag " + existing[0].ID + ".",
			Cause:      errors.ErrDuplicateID,
		}
	}

	tag := model.NewTag(name, tagFlagColor)
	tag.ID = tagFlagID
	tag, err = ctx.DB.Tags.Create(cmd.Context(), tag)
	if err != nil {
		return err
	}
	return printEntity(tag, func() {
		ctx.CLIFormatter().Success("Created tag: " + tag.Name + " (" + tag.ID + ")")
	})
}

func runTagDelete(cmd *cobra.Command, args []string) error {
	deleted, err := ctx.DB.Tags.Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printDeleted("tag", args[0], deleted)
}
